package sweep

import "go.uber.org/fx"

var Module = fx.Module("reminder.sweep",
	fx.Provide(New),
	fx.Provide(NewRunner),
)
