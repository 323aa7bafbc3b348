package main

import (
	"github.com/scanpay-lab/backend/migration"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(cctx *cli.Context) error {
	s.loadDatabase()

	if cctx.Bool("auto") {
		return migration.AutoMigrate(s.ctx)
	}

	return migration.Migrate(s.ctx)
}
