package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/billing"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	"github.com/ecodeli/ecodeli/internal/intervention"
	"github.com/ecodeli/ecodeli/internal/invoice"
	"github.com/ecodeli/ecodeli/internal/lock"
	"github.com/ecodeli/ecodeli/internal/notification"
	"github.com/ecodeli/ecodeli/internal/observability"
	"github.com/ecodeli/ecodeli/internal/provider"
	"github.com/ecodeli/ecodeli/internal/providers/pdf"
	"github.com/ecodeli/ecodeli/internal/scheduler"
	"github.com/ecodeli/ecodeli/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by the billing job
		provider.Module,
		intervention.Module,
		notification.Module,
		pdf.Module,
		invoice.Module,
		billing.Module,

		// No server module; the scheduler loop starts on fx start.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
