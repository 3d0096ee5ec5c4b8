package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/authorization"
	"github.com/ecodeli/ecodeli/internal/billing"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	"github.com/ecodeli/ecodeli/internal/intervention"
	"github.com/ecodeli/ecodeli/internal/invoice"
	"github.com/ecodeli/ecodeli/internal/lock"
	"github.com/ecodeli/ecodeli/internal/migration"
	"github.com/ecodeli/ecodeli/internal/notification"
	"github.com/ecodeli/ecodeli/internal/observability"
	"github.com/ecodeli/ecodeli/internal/pricing"
	"github.com/ecodeli/ecodeli/internal/provider"
	"github.com/ecodeli/ecodeli/internal/providers/pdf"
	"github.com/ecodeli/ecodeli/internal/ratelimit"
	"github.com/ecodeli/ecodeli/internal/scheduler"
	"github.com/ecodeli/ecodeli/internal/server"
	"github.com/ecodeli/ecodeli/internal/subscription"
	"github.com/ecodeli/ecodeli/pkg/db"
	"go.uber.org/fx"
)

// All-in-one binary: migrations, HTTP API and the billing scheduler in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		// Functional Domains
		authorization.Module,
		provider.Module,
		intervention.Module,
		subscription.Module,
		pricing.Module,
		notification.Module,
		pdf.Module,
		invoice.Module,
		billing.Module,
		ratelimit.Module,

		server.Module,
		scheduler.Module,
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
