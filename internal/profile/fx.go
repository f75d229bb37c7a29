package profile

import (
	"go.uber.org/fx"

	"github.com/chillserv/fieldops/internal/profile/repository"
	"github.com/chillserv/fieldops/internal/profile/service"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
