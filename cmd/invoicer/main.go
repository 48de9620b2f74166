package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/auth/token"
	"github.com/smallbiznis/invoicer/internal/balance"
	"github.com/smallbiznis/invoicer/internal/client"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/smallbiznis/invoicer/internal/invoice"
	"github.com/smallbiznis/invoicer/internal/invoicetemplate"
	"github.com/smallbiznis/invoicer/internal/migration"
	"github.com/smallbiznis/invoicer/internal/observability"
	"github.com/smallbiznis/invoicer/internal/payment"
	"github.com/smallbiznis/invoicer/internal/providers"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"github.com/smallbiznis/invoicer/internal/reminder"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	"github.com/smallbiznis/invoicer/internal/scheduler"
	"github.com/smallbiznis/invoicer/internal/sequence"
	"github.com/smallbiznis/invoicer/internal/server"
	"github.com/smallbiznis/invoicer/internal/user"
	"github.com/smallbiznis/invoicer/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		providers.Module,
		ratelimit.Module,
		token.Module,

		// Functional Domains
		user.Module,
		client.Module,
		invoicetemplate.Module,
		sequence.Module,
		balance.Module,
		invoice.Module,
		payment.Module,
		reminder.Module,
		sweep.Module,

		scheduler.Module,
		server.Module,
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
