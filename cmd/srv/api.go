package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/scanpay-lab/backend/internal/domain"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/eth"
	"github.com/scanpay-lab/backend/internal/middleware"
	"github.com/scanpay-lab/backend/pkg/ens"
	"github.com/scanpay-lab/backend/pkg/router"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startApi(*cli.Context) error {
	s.loadDatabase()
	s.loadSnowflake()
	s.loadSessionStore()
	s.loadEthClient()
	s.loadRedisClient()
	s.loadPublisher()
	s.loadRepos()
	s.loadDomains()
	s.loadRouter()
	s.startPrometheus()

	cfg := xcontext.Configs(s.ctx)
	httpSrv := &http.Server{
		Addr:    cfg.ApiServer.Address(),
		Handler: s.router.Handler(cfg.ApiServer.AllowedOrigins),
	}

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		xcontext.Logger(s.ctx).Infof("Starting server on port: %s", cfg.ApiServer.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		xcontext.Logger(s.ctx).Errorf("Cannot shutdown server gracefully: %v", err)
	}

	if stopper, ok := s.publisher.(interface{ Stop(context.Context) error }); ok {
		if err := stopper.Stop(shutdownCtx); err != nil {
			xcontext.Logger(s.ctx).Errorf("Cannot stop publisher: %v", err)
		}
	}

	xcontext.Logger(s.ctx).Infof("Server stop")
	return nil
}

// newNameResolver reads reverse records from Ethereum mainnet, where the ENS
// registry lives.
func (s *srv) newNameResolver() domain.NameResolver {
	cfg := xcontext.Configs(s.ctx).Ens
	client := eth.NewEthClient(eth.ChainInfo{Name: "ethereum", ID: 1, Rpcs: cfg.Rpcs})
	go client.Start(s.ctx)

	return ens.NewResolver(client, ethcommon.HexToAddress(cfg.RegistryAddress))
}

func (s *srv) loadRouter() {
	cfg := xcontext.Configs(s.ctx)

	s.router = router.New(s.ctx)
	limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		panic(err)
	}
	s.router.Before(limiter.Middleware())
	s.router.Before(middleware.NewAuthVerifier(s.tokenEngine).Middleware())
	s.router.AddCloser(middleware.Logger())
	s.router.AddCloser(middleware.Prometheus())

	// Wallet sign-in API
	authRouter := s.router.Branch()
	authRouter.After(middleware.HandleSaveSession())
	authRouter.After(middleware.HandleSetAccessToken())
	{
		router.GET(authRouter, "/wallet/login", s.authDomain.WalletLogin)
		router.POST(authRouter, "/wallet/verify", s.authDomain.WalletVerify)
	}

	// These following APIs need an access token.
	authenticatedRouter := s.router.Branch()
	authenticatedRouter.Before(middleware.Authenticate())
	{
		// Merchant API
		router.POST(authenticatedRouter, "/registerMerchant", s.merchantDomain.Register)
		router.GET(authenticatedRouter, "/getMyMerchants", s.merchantDomain.GetMine)

		// QR label API
		router.POST(authenticatedRouter, "/addQRLabel", s.qrLabelDomain.Add)
		router.POST(authenticatedRouter, "/renameQRLabel", s.qrLabelDomain.Rename)
		router.POST(authenticatedRouter, "/deleteQRLabel", s.qrLabelDomain.Delete)
		router.GET(authenticatedRouter, "/getQRLabel", s.qrLabelDomain.Get)
		router.GET(authenticatedRouter, "/getQRLabelName", s.qrLabelDomain.GetName)
		router.GET(authenticatedRouter, "/getQRLabels", s.qrLabelDomain.GetList)

		// Reward API
		router.POST(authenticatedRouter, "/claimBox", s.rewardDomain.Claim)
		router.POST(authenticatedRouter, "/depositFunds", s.rewardDomain.DepositFunds)
		router.GET(authenticatedRouter, "/getRewardEvents", s.rewardDomain.GetEvents)
	}

	operatorRouter := s.router.Branch()
	operatorRouter.Before(middleware.OnlyOperator())
	{
		router.POST(operatorRouter, "/grantBox", s.rewardDomain.Grant)
		router.POST(operatorRouter, "/grantBoxBatch", s.rewardDomain.GrantBatch)
		router.POST(operatorRouter, "/withdrawFunds", s.rewardDomain.WithdrawFunds)
		router.POST(operatorRouter, "/updatePrizeTiers", s.rewardDomain.UpdatePrizeTiers)
	}

	// Public API.
	router.GET(s.router, "/decodeQR", s.merchantDomain.Decode)
	router.GET(s.router, "/resolveQR", s.merchantDomain.Resolve)
	router.POST(s.router, "/scanQRImage", s.qrCodeDomain.ScanImage)
	router.GET(s.router, "/generateQRImage", s.qrCodeDomain.GenerateImage)
	router.GET(s.router, "/isRegistered", s.merchantDomain.IsRegistered)
	router.GET(s.router, "/ownerOf", s.merchantDomain.OwnerOf)
	router.GET(s.router, "/getTotalMerchants", s.merchantDomain.Total)
	router.GET(s.router, "/getUserStats", s.rewardDomain.GetUserStats)
	router.GET(s.router, "/getPrizeTiers", s.rewardDomain.GetPrizeTiers)
	router.GET(s.router, "/getGlobalStats", s.rewardDomain.GetGlobalStats)
	router.GET(s.router, "/getTransactionHistory", s.transactionDomain.GetHistory)
	router.GET(s.router, "/lookupNames", s.nameDomain.Lookup)
}
