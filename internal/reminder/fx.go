package reminder

import (
	"github.com/smallbiznis/invoicer/internal/reminder/repository"
	"github.com/smallbiznis/invoicer/internal/reminder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewLedger),
)
