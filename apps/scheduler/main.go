package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/observability"
	"github.com/smallbiznis/invoicer/internal/providers"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"github.com/smallbiznis/invoicer/internal/reminder"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	"github.com/smallbiznis/invoicer/internal/scheduler"
	"github.com/smallbiznis/invoicer/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		providers.Module,
		ratelimit.Module,

		// Reminder sweep and its collaborators
		reminder.Module,
		sweep.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

// Node 2 keeps ids distinct from the API process when both write reminder logs.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
