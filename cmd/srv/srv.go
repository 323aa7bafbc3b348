package main

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/internal/common"
	"github.com/scanpay-lab/backend/internal/domain"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/eth"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/migration"
	"github.com/scanpay-lab/backend/pkg/authenticator"
	"github.com/scanpay-lab/backend/pkg/idutil"
	"github.com/scanpay-lab/backend/pkg/kafka"
	"github.com/scanpay-lab/backend/pkg/logger"
	"github.com/scanpay-lab/backend/pkg/prometheus"
	"github.com/scanpay-lab/backend/pkg/pubsub"
	"github.com/scanpay-lab/backend/pkg/router"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/scanpay-lab/backend/pkg/xredis"
	"github.com/urfave/cli/v2"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type srv struct {
	ctx context.Context
	app *cli.App

	ethClient   eth.EthClient
	redisClient xredis.Client
	publisher   pubsub.Publisher
	tokenEngine authenticator.TokenEngine[model.AccessToken]

	merchantRepo     repository.MerchantRepository
	qrLabelRepo      repository.QRLabelRepository
	rewardRepo       repository.RewardRepository
	rewardPayoutRepo repository.RewardPayoutRepository
	rewardEventRepo  repository.RewardEventRepository

	authDomain        domain.AuthDomain
	merchantDomain    domain.MerchantDomain
	qrLabelDomain     domain.QRLabelDomain
	qrCodeDomain      domain.QRCodeDomain
	rewardDomain      domain.RewardDomain
	transactionDomain domain.TransactionDomain
	nameDomain        domain.NameDomain

	router *router.Router
}

func (s *srv) loadConfig(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return err
	}

	s.ctx = xcontext.WithConfigs(s.ctx, *cfg)
	s.ctx = xcontext.WithLogger(s.ctx, logger.NewLogger(logger.ParseLevel(cfg.Log.Level)))
	return nil
}

func (s *srv) newDatabase() *gorm.DB {
	cfg := xcontext.Configs(s.ctx).Database
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       cfg.ConnectionString(),
		DefaultStringSize:         256,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db
}

func (s *srv) loadDatabase() {
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
}

func (s *srv) migrateDB() {
	if err := migration.Migrate(s.ctx); err != nil {
		panic(err)
	}
}

func (s *srv) loadSnowflake() {
	if err := idutil.Init(xcontext.Configs(s.ctx).NodeID); err != nil {
		panic(err)
	}
}

func (s *srv) loadEthClient() {
	cfg := xcontext.Configs(s.ctx).Chain
	s.ethClient = eth.NewEthClient(eth.ChainInfo{
		Name:           cfg.Name,
		ID:             cfg.ID,
		Rpcs:           cfg.Rpcs,
		UseExternalRPC: cfg.UseExternalRPC,
	})
	go s.ethClient.Start(s.ctx)
}

func (s *srv) loadRedisClient() {
	cfg := xcontext.Configs(s.ctx).Redis
	if cfg.Addr == "" {
		xcontext.Logger(s.ctx).Infof("Redis is not configured, history is not cached")
		return
	}

	client, err := xredis.NewClient(s.ctx, cfg)
	if err != nil {
		panic(err)
	}

	s.redisClient = client
}

func (s *srv) loadPublisher() {
	cfg := xcontext.Configs(s.ctx).Kafka
	if cfg.Addr == "" {
		xcontext.Logger(s.ctx).Infof("Kafka is not configured, events are not published")
		s.publisher = pubsub.NewNoopPublisher()
		return
	}

	publisher, err := kafka.NewPublisher(cfg)
	if err != nil {
		panic(err)
	}

	s.publisher = publisher
}

func (s *srv) loadSessionStore() {
	cfg := xcontext.Configs(s.ctx)
	store := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Secure = cfg.Env != "local"
	s.ctx = xcontext.WithSessionStore(s.ctx, store)
}

func (s *srv) loadRepos() {
	s.merchantRepo = repository.NewMerchantRepository()
	s.qrLabelRepo = repository.NewQRLabelRepository()
	s.rewardRepo = repository.NewRewardRepository()
	s.rewardPayoutRepo = repository.NewRewardPayoutRepository()
	s.rewardEventRepo = repository.NewRewardEventRepository()
}

func (s *srv) loadDomains() {
	cfg := xcontext.Configs(s.ctx)
	s.tokenEngine = authenticator.NewTokenEngine[model.AccessToken](cfg.Auth.AccessToken)

	s.authDomain = domain.NewAuthDomain(s.tokenEngine)
	s.merchantDomain = domain.NewMerchantDomain(s.merchantRepo, s.publisher)
	s.qrLabelDomain = domain.NewQRLabelDomain(s.qrLabelRepo)
	s.qrCodeDomain = domain.NewQRCodeDomain(s.merchantDomain)
	s.rewardDomain = domain.NewRewardDomain(
		s.rewardRepo, s.rewardPayoutRepo, s.rewardEventRepo, s.ethClient, s.publisher)
	s.transactionDomain = domain.NewTransactionDomain(s.ethClient, s.redisClient)
	s.nameDomain = domain.NewNameDomain(s.ctx, s.newNameResolver())
}

func (s *srv) startPrometheus() {
	cfg := xcontext.Configs(s.ctx)
	go func() {
		httpSrv := &http.Server{
			Addr:    cfg.PrometheusServer.Address(),
			Handler: prometheus.NewHandler(common.PromCollectors()),
		}

		xcontext.Logger(s.ctx).Infof("Starting prometheus on port: %s", cfg.PrometheusServer.Port)
		if err := httpSrv.ListenAndServe(); err != nil {
			xcontext.Logger(s.ctx).Errorf("Prometheus server stopped: %v", err)
		}
	}()
}
