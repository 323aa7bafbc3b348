package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/scanpay-lab/backend/internal/domain/blockchain"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startPayout(*cli.Context) error {
	s.loadDatabase()
	s.loadEthClient()
	s.loadRepos()
	s.startPrometheus()

	manager, err := blockchain.NewPayoutManager(s.ctx, s.rewardPayoutRepo, s.ethClient)
	if err != nil {
		return err
	}

	custody, err := blockchain.CustodyAddress(s.ctx)
	if err != nil {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Started payout worker, custody wallet is %s", custody.Hex())
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.Run(ctx)
	return nil
}
