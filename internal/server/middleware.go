package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chillserv/fieldops/internal/identity"
)

// AuthRequired validates the bearer token and injects the actor into the
// request context so services downstream can authorize without touching
// HTTP concerns.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.authMgr.ParseValidate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorFrom(c *gin.Context) (identity.Actor, bool) {
	return identity.FromContext(c.Request.Context())
}
