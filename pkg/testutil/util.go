package testutil

import (
	"context"
	"time"

	"github.com/gorilla/sessions"
	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/logger"
	"github.com/scanpay-lab/backend/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	Operator       = "0x00000000000000000000000000000000000000aa"
	User1          = "0x0000000000000000000000000000000000000001"
	User2          = "0x0000000000000000000000000000000000000002"
	CustodySecret  = "custody-secret"
	USDCAddress    = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	SessionName    = "scanpay_session"
	AccessTokenKey = "access_token"
)

func MockConfigs() config.Configs {
	return config.Configs{
		Env: "test",
		ApiServer: config.APIServerConfigs{
			MaxLimit:     50,
			DefaultLimit: 10,
		},
		Auth: config.AuthConfigs{
			AccessToken: config.TokenConfigs{
				Name:       AccessTokenKey,
				Secret:     "secret",
				Expiration: time.Minute,
			},
		},
		Session: config.SessionConfigs{
			Name:   SessionName,
			Secret: "session-secret",
		},
		Chain: config.ChainConfigs{
			Name:                  "base",
			ID:                    8453,
			USDCAddress:           USDCAddress,
			USDCDecimals:          6,
			CustodySecret:         CustodySecret,
			HistoryLookbackBlocks: 5000,
			HistoryCacheTTL:       time.Minute,
		},
		Ens: config.EnsConfigs{
			CacheSize: 16,
			CacheTTL:  time.Minute,
		},
		Reward: config.RewardConfigs{
			Operators: []string{Operator},
		},
		Payout: config.PayoutConfigs{
			Interval:        time.Second,
			BatchSize:       10,
			DispatchTimeout: 10 * time.Minute,
		},
		RateLimit: config.RateLimitConfigs{
			RequestsPerMinute: 60,
			Burst:             2,
			MaxClients:        100,
			IdleTTL:           5 * time.Minute,
			TrustedProxies:    []string{"10.0.0.0/8"},
		},
		QRImage: config.QRImageConfigs{
			MaxDimension: 1024,
			DefaultSize:  256,
		},
	}
}

func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// Every connection to ":memory:" opens a distinct database.
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := MockConfigs()

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.SILENCE))
	ctx = xcontext.WithSessionStore(ctx, sessions.NewCookieStore([]byte(cfg.Session.Secret)))
	ctx = xcontext.WithDB(ctx, db)

	if err := entity.MigrateTable(ctx); err != nil {
		panic(err)
	}

	return ctx
}

// WithUserID switches the caller of an existing mock context, keeping its
// database.
func WithUserID(ctx context.Context, userID string) context.Context {
	return xcontext.WithRequestUserID(ctx, userID)
}
