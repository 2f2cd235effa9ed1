package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom-auction/auth"
	"classroom-auction/auction"
	"classroom-auction/domain"
)

const claimsKey = "claims"

// requireToken verifies the bearer token. Browsers cannot set headers on a
// websocket upgrade, so a token query parameter is accepted as well.
func requireToken(j auth.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := auth.BearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			tok = c.Query("token")
		}
		if tok == "" {
			fail(c, auth.ErrUnauthorized)
			return
		}
		claims, err := j.Verify(tok)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) auth.Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(auth.Claims)
	return claims
}

// audienceFor renders the room's owner as the auctioneer when the token
// carries the auctioneer role; everyone else, including other auctioneers,
// observes as a participant.
func audienceFor(claims auth.Claims, d auction.Descriptor) domain.Audience {
	if claims.Identity == d.Owner && claims.Audience() == domain.AudienceAuctioneer {
		return domain.AudienceAuctioneer
	}
	return domain.AudienceParticipant
}

// checkOwner refuses a participant token that carries the room owner's
// identity. Rooms trust the identity on an action, so this is the only
// place the role is tied to it.
func checkOwner(claims auth.Claims, d auction.Descriptor) error {
	if claims.Identity == d.Owner && claims.Role != auth.RoleAuctioneer {
		return domain.Reject(domain.ReasonHostOnly, "identity", claims.Identity, "role", claims.Role)
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
