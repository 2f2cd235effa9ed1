package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"classroom-auction/domain"
	"classroom-auction/room"
	"classroom-auction/visibility"
)

const (
	writeTimeout = 5 * time.Second
	readLimit    = 16 << 10
)

// rejectionData is the payload of a rejection envelope. It goes to the
// originating connection only.
type rejectionData struct {
	Action  string         `json:"action"`
	Reason  domain.Reason  `json:"reason"`
	Context map[string]any `json:"context,omitempty"`
}

// stream upgrades to a websocket, subscribes the caller and joins the room.
// Inbound frames are actionRequest JSON; outbound frames are envelopes.
func (h *AuctionHandler) stream(c *gin.Context) {
	a, claims, ok := h.roomFor(c)
	if !ok {
		return
	}
	log := h.Logger.With(zap.String("room", a.ID()), zap.String("identity", claims.Identity))

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := a.Subscribe(ctx, claims.Identity, audienceFor(claims, a.Descriptor()))
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "room closed")
		return
	}
	defer a.Unsubscribe(sub)

	go func() {
		defer cancel()
		for env := range sub.Updates() {
			if err := write(ctx, conn, env); err != nil {
				return
			}
		}
		// 订阅被关闭：房间停止或连接过慢
		conn.Close(websocket.StatusGoingAway, "subscription ended")
	}()

	if _, err := a.Submit(ctx, domain.Action{Kind: domain.ActionJoin, Actor: claims.Identity}); err != nil {
		h.reject(ctx, conn, a.ID(), string(domain.ActionJoin), err)
	}
	log.Debug("websocket connected")

	for {
		var req actionRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			break
		}
		action, err := req.toAction(claims.Identity)
		if err == nil {
			_, err = a.Submit(ctx, action)
		}
		if err != nil && !h.reject(ctx, conn, a.ID(), req.Action, err) {
			break
		}
	}

	leaveCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, _ = a.Submit(leaveCtx, domain.Action{Kind: domain.ActionLeave, Actor: claims.Identity})
	conn.Close(websocket.StatusNormalClosure, "")
	log.Debug("websocket disconnected")
}

// reject reports a rejection to this connection only. It returns false when
// err is not a rejection and the connection should end.
func (h *AuctionHandler) reject(ctx context.Context, conn *websocket.Conn, roomID, action string, err error) bool {
	rej, ok := domain.AsRejection(err)
	if !ok {
		return false
	}
	env := room.Envelope{
		Type: visibility.WireRejection,
		Room: roomID,
		Data: rejectionData{Action: action, Reason: rej.Code, Context: rej.Context},
	}
	if rej.Code == domain.ReasonRoomClosed {
		_ = write(ctx, conn, env)
		return false
	}
	return write(ctx, conn, env) == nil
}

func write(ctx context.Context, conn *websocket.Conn, env room.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, env)
}
