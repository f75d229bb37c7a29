package booking

import (
	"go.uber.org/fx"

	"github.com/chillserv/fieldops/internal/booking/repository"
	"github.com/chillserv/fieldops/internal/booking/service"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
