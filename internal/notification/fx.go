package notification

import (
	"go.uber.org/fx"

	"github.com/chillserv/fieldops/internal/notification/repository"
	"github.com/chillserv/fieldops/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
