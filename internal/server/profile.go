package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
)

type registerDeviceTokenRequest struct {
	DeviceToken string `json:"deviceToken"`
}

func (s *Server) RegisterDeviceToken(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req registerDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, profiledomain.ErrInvalidDeviceToken)
		return
	}

	if err := s.profileSvc.RegisterDeviceToken(c.Request.Context(), snowflake.ID(actor.ID), req.DeviceToken); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"registered": true}})
}
