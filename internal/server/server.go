package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chillserv/fieldops/internal/auth"
	bookingdomain "github.com/chillserv/fieldops/internal/booking/domain"
	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/eventbus"
	notificationdomain "github.com/chillserv/fieldops/internal/notification/domain"
	"github.com/chillserv/fieldops/internal/observability"
	obsmiddleware "github.com/chillserv/fieldops/internal/observability/logger"
	obstracing "github.com/chillserv/fieldops/internal/observability/tracing"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
	"github.com/chillserv/fieldops/internal/ratelimit"
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	hub             *eventbus.Hub
	authMgr         *auth.Manager
	bookingSvc      bookingdomain.Service
	notificationSvc notificationdomain.Service
	profileSvc      profiledomain.Service
	createLimiter   *ratelimit.BookingCreateLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Hub             *eventbus.Hub
	AuthMgr         *auth.Manager
	BookingSvc      bookingdomain.Service
	NotificationSvc notificationdomain.Service
	ProfileSvc      profiledomain.Service
	CreateLimiter   *ratelimit.BookingCreateLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		hub:             p.Hub,
		authMgr:         p.AuthMgr,
		bookingSvc:      p.BookingSvc,
		notificationSvc: p.NotificationSvc,
		profileSvc:      p.ProfileSvc,
		createLimiter:   p.CreateLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	bookings := api.Group("/bookings")
	{
		bookings.POST("", s.CreateBooking)
		bookings.GET("", s.ListBookings)
		bookings.GET("/availability", s.GetAvailability)
		bookings.GET("/stats", s.GetMonthlyStats)
		bookings.GET("/:id", s.GetBooking)
		bookings.PUT("/:id/accept", s.ClaimBooking)
		bookings.PUT("/:id/release", s.ReleaseBooking)
		bookings.PUT("/:id/status", s.UpdateBookingStatus)
		bookings.PUT("/:id/details", s.AmendBookingDetails)
		bookings.PUT("/:id/review", s.SubmitReview)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", s.ListNotifications)
		notifications.PUT("/:id/read", s.MarkNotificationRead)
	}

	profile := api.Group("/profile")
	{
		profile.PUT("/device-token", s.RegisterDeviceToken)
	}

	realtime := s.engine.Group("/realtime", s.AuthRequired())
	{
		realtime.GET("/events", s.StreamEvents)
		realtime.POST("/location", s.PostTechnicianLocation)
	}
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
