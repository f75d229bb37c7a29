package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	bookingdomain "github.com/chillserv/fieldops/internal/booking/domain"
)

func (s *Server) GetAvailability(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		AbortWithError(c, bookingdomain.ErrInvalidDate)
		return
	}

	blocked, err := s.bookingSvc.BlockedSlots(c.Request.Context(), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"date":    date,
		"blocked": blocked,
	}})
}

func (s *Server) GetMonthlyStats(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		AbortWithError(c, bookingdomain.ErrInvalidDate)
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(c.Query("month")))
	if err != nil {
		AbortWithError(c, bookingdomain.ErrInvalidDate)
		return
	}

	loads, err := s.bookingSvc.MonthlyLoad(c.Request.Context(), year, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": loads})
}
