package main

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/scanpay-lab/backend/internal/domain"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

// tierFile is the layout of the prize table file:
//
//	[[tier]]
//	amount = "0.01"
//	cumulative_weight = 50
type tierFile struct {
	Tiers []struct {
		Amount           string `toml:"amount"`
		CumulativeWeight int    `toml:"cumulative_weight"`
	} `toml:"tier"`
}

func (s *srv) startTiers(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return errors.New("require exactly one tiers file")
	}

	var file tierFile
	if _, err := toml.DecodeFile(cctx.Args().First(), &file); err != nil {
		return fmt.Errorf("cannot read tiers file: %w", err)
	}

	operators := xcontext.Configs(s.ctx).Reward.Operators
	if len(operators) == 0 {
		return errors.New("no operator is configured")
	}

	s.loadDatabase()
	s.loadSnowflake()
	s.loadPublisher()
	s.loadRepos()
	rewardDomain := domain.NewRewardDomain(
		s.rewardRepo, s.rewardPayoutRepo, s.rewardEventRepo, nil, s.publisher)

	req := &model.UpdatePrizeTiersRequest{}
	for _, tier := range file.Tiers {
		req.Amounts = append(req.Amounts, tier.Amount)
		req.Weights = append(req.Weights, tier.CumulativeWeight)
	}

	ctx := xcontext.WithRequestUserID(s.ctx, operators[0])
	if _, err := rewardDomain.UpdatePrizeTiers(ctx, req); err != nil {
		return err
	}

	xcontext.Logger(s.ctx).Infof("Replaced the prize table with %d tiers", len(req.Amounts))
	return nil
}
