package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"classroom-auction/auth"
	"classroom-auction/room"
)

// Server wires the HTTP surface of the auction engine.
type Server struct {
	Registry    *room.Registry
	Auth        auth.Authenticator
	Logger      *zap.Logger
	CORSOrigins []string
	Ready       func() bool
	Metrics     http.Handler
}

// Handler builds the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	(&HealthHandler{Ready: s.Ready}).Register(engine)
	(&LoginHandler{Auth: s.Auth}).Register(engine)
	(&AuctionHandler{
		Registry:       s.Registry,
		JWT:            s.Auth.JWT,
		Logger:         log,
		OriginPatterns: originPatterns(s.CORSOrigins),
	}).Register(engine)
	if s.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.Metrics))
	}

	return cors.New(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(engine)
}

// originPatterns turns CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
