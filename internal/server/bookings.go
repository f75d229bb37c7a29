package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bookingdomain "github.com/chillserv/fieldops/internal/booking/domain"
)

func bookingID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, bookingdomain.ErrBookingNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if s.createLimiter.Enabled() {
		allowed, retryAfter, err := s.createLimiter.Allow(c.Request.Context(), actor.Email)
		if err != nil {
			s.log.Warn("booking create rate limit check failed", zap.Error(err))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many bookings, slow down",
			}})
			return
		}
	}

	var req bookingdomain.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": booking})
}

func (s *Server) ListBookings(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Date   string `form:"date"`
		Email  string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	bookings, err := s.bookingSvc.List(c.Request.Context(), bookingdomain.ListBookingsRequest{
		Status:        bookingdomain.BookingStatus(strings.TrimSpace(query.Status)),
		Date:          strings.TrimSpace(query.Date),
		CustomerEmail: strings.ToLower(strings.TrimSpace(query.Email)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bookings})
}

func (s *Server) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	booking, err := s.bookingSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) ClaimBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req struct {
		TechnicianName string `json:"technicianName"`
	}
	_ = c.ShouldBindJSON(&req)

	booking, err := s.bookingSvc.Claim(c.Request.Context(), id, req.TechnicianName)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) ReleaseBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	booking, err := s.bookingSvc.Release(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) UpdateBookingStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookingSvc.UpdateStatus(c.Request.Context(), id, bookingdomain.BookingStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) AmendBookingDetails(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req bookingdomain.AmendDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookingSvc.AmendDetails(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) SubmitReview(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req struct {
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookingSvc.SubmitReview(c.Request.Context(), id, req.Rating, req.Review)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}
