package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"classroom-auction/auth"
	"classroom-auction/domain"
	"classroom-auction/room"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

var rejectionStatus = map[domain.Reason]int{
	domain.ReasonHostOnly:        http.StatusForbidden,
	domain.ReasonParticipantOnly: http.StatusForbidden,
	domain.ReasonInvalidAmount:   http.StatusBadRequest,
	domain.ReasonUnknownAction:   http.StatusBadRequest,
	domain.ReasonWrongMechanism:  http.StatusBadRequest,
	domain.ReasonOverBudget:      http.StatusUnprocessableEntity,
	domain.ReasonRoomClosed:      http.StatusGone,
}

// fail maps err onto a response: rejections keep their reason code and
// context, sentinel errors get their status.
func fail(c *gin.Context, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		status, ok := rejectionStatus[rej.Code]
		if !ok {
			status = http.StatusConflict
		}
		Error(c, status, string(rej.Code), rej.Context)
		return
	}
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		Error(c, http.StatusNotFound, "room not found", nil)
	case errors.Is(err, auth.ErrUnauthorized):
		Error(c, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, room.ErrRegistryClosed):
		Error(c, http.StatusServiceUnavailable, "shutting down", nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
