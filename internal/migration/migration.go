package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&providerdomain.Provider{},
		&interventiondomain.Intervention{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&invoicedomain.BankTransfer{},
		&billingdomain.BillingRun{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.PriorityCreditUsage{},
		&notificationdomain.Notification{},
	}
}

// AutoMigrate creates the schema from the gorm models. It backs the sqlite and
// mysql dialects, which the SQL migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
