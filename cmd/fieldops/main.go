package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/chillserv/fieldops/internal/auth"
	"github.com/chillserv/fieldops/internal/booking"
	"github.com/chillserv/fieldops/internal/clock"
	"github.com/chillserv/fieldops/internal/config"
	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/migration"
	"github.com/chillserv/fieldops/internal/notification"
	"github.com/chillserv/fieldops/internal/observability"
	"github.com/chillserv/fieldops/internal/profile"
	"github.com/chillserv/fieldops/internal/providers"
	"github.com/chillserv/fieldops/internal/ratelimit"
	"github.com/chillserv/fieldops/internal/server"
	"github.com/chillserv/fieldops/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		eventbus.Module,

		auth.Module,
		profile.Module,
		providers.Module,
		notification.Module,
		booking.Module,
		ratelimit.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
