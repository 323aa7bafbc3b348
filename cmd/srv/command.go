package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path of the configuration file",
		EnvVars: []string{"SCANPAY_CONFIG"},
	}

	s.app = cli.NewApp()
	s.app.Action = cli.ShowAppHelp
	s.app.Name = "ScanPay"
	s.app.Usage = "PayNow merchant registry and reward backend"
	s.app.Flags = []cli.Flag{configFlag}
	s.app.Before = s.loadConfig
	s.app.Commands = []*cli.Command{
		{
			Action:      s.startApi,
			Name:        "api",
			Usage:       "Start service api",
			Category:    "Api",
			Description: `Serves the merchant registry, QR labels, rewards and wallet history APIs.`,
		},
		{
			Action:      s.startPayout,
			Name:        "payout",
			Usage:       "Start payout worker",
			Category:    "Worker",
			Description: `Sends pending USDC payouts from the custody wallet and tracks their receipts.`,
		},
		{
			Action:      s.startMigrate,
			Name:        "migrate",
			Usage:       "Migrate database",
			Category:    "Database",
			Description: `Applies the database migrations.`,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "auto",
					Usage: "Create tables from the models instead of the SQL migrations",
				},
			},
		},
		{
			Action:      s.startTiers,
			Name:        "tiers",
			Usage:       "Replace the prize table",
			ArgsUsage:   "<tiers.toml>",
			Category:    "Database",
			Description: `Replaces the prize table with the tiers listed in a TOML file.`,
		},
	}
}
