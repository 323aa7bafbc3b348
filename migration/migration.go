package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

//go:embed mysql/*.sql
var mysqlFS embed.FS

type migrateLogger struct {
	ctx context.Context
}

func (l migrateLogger) Printf(format string, v ...any) {
	xcontext.Logger(l.ctx).Infof(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded MySQL migrations to the database in ctx.
func Migrate(ctx context.Context) error {
	db, err := xcontext.DB(ctx).DB()
	if err != nil {
		return err
	}

	source, err := iofs.New(mysqlFS, "mysql")
	if err != nil {
		return err
	}

	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, xcontext.Configs(ctx).Database.Database, driver)
	if err != nil {
		return err
	}
	m.Log = migrateLogger{ctx: ctx}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("cannot apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	xcontext.Logger(ctx).Infof("Database schema at version %d (dirty=%v)", version, dirty)
	return nil
}

// AutoMigrate creates the tables from the gorm models. It is used with
// sqlite, where the MySQL scripts do not apply.
func AutoMigrate(ctx context.Context) error {
	return entity.MigrateTable(ctx)
}
