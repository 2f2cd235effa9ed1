package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom-auction/auth"
	"classroom-auction/domain"
	"classroom-auction/room"
)

type AuctionHandler struct {
	Registry       *room.Registry
	JWT            auth.JWT
	Logger         *zap.Logger
	OriginPatterns []string
}

func (h *AuctionHandler) Register(r *gin.Engine) {
	group := r.Group("/auctions", requireToken(h.JWT))
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/activity", h.activity)
	group.GET("/:id/snapshot", h.snapshot)
	group.POST("/:id/actions", h.act)
	group.GET("/:id/ws", h.stream)
}

func (h *AuctionHandler) create(c *gin.Context) {
	claims := claimsFrom(c)
	if claims.Role != auth.RoleAuctioneer {
		fail(c, domain.Reject(domain.ReasonHostOnly, "action", "create"))
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	opts, err := req.toOptions(claims.Identity)
	if err != nil {
		fail(c, err)
		return
	}
	a, err := h.Registry.Create(opts)
	if err != nil {
		if _, ok := domain.AsRejection(err); ok {
			fail(c, err)
			return
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	h.Logger.Info("room created",
		zap.String("room", a.ID()),
		zap.String("mechanism", string(a.Mechanism())),
		zap.String("owner", claims.Identity))
	Ok(c, a.Descriptor(), nil)
}

func (h *AuctionHandler) list(c *gin.Context) {
	rooms := h.Registry.List()
	Ok(c, rooms, map[string]any{"count": len(rooms)})
}

// roomFor resolves the room in the path for the caller.
func (h *AuctionHandler) roomFor(c *gin.Context) (*room.Actor, auth.Claims, bool) {
	a, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, auth.Claims{}, false
	}
	claims := claimsFrom(c)
	if err := checkOwner(claims, a.Descriptor()); err != nil {
		h.Logger.Warn("participant token uses the owner identity",
			zap.String("room", a.ID()),
			zap.String("identity", claims.Identity))
		fail(c, err)
		return nil, auth.Claims{}, false
	}
	return a, claims, true
}

func (h *AuctionHandler) get(c *gin.Context) {
	a, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, a.Descriptor(), nil)
}

func (h *AuctionHandler) activity(c *gin.Context) {
	a, claims, ok := h.roomFor(c)
	if !ok {
		return
	}
	views, err := a.Activity(c.Request.Context(), audienceFor(claims, a.Descriptor()))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *AuctionHandler) snapshot(c *gin.Context) {
	a, claims, ok := h.roomFor(c)
	if !ok {
		return
	}
	s, err := a.Snapshot(c.Request.Context(), audienceFor(claims, a.Descriptor()), claims.Identity)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, s, nil)
}

// act submits one action outside the realtime channel.
func (h *AuctionHandler) act(c *gin.Context) {
	a, claims, ok := h.roomFor(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	action, err := req.toAction(claims.Identity)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := a.Submit(c.Request.Context(), action)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, res, nil)
}
