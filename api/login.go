package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classroom-auction/auth"
)

type LoginHandler struct {
	Auth auth.Authenticator
}

func (h *LoginHandler) Register(r *gin.Engine) {
	r.POST("/login", h.login)
}

type loginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

func (h *LoginHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	tok, exp, claims, err := h.Auth.Login(req.Identity, req.Role, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, tokenResponse{
		Token:     tok,
		Identity:  claims.Identity,
		Role:      claims.Role,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	}, nil)
}
