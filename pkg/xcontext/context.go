package xcontext

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/pkg/logger"
	"gorm.io/gorm"
)

type (
	configsKey      struct{}
	loggerKey       struct{}
	dbKey           struct{}
	dbTxKey         struct{}
	requestUserKey  struct{}
	httpRequestKey  struct{}
	httpWriterKey   struct{}
	sessionStoreKey struct{}
	responseKey     struct{}
	errorKey        struct{}
	startTimeKey    struct{}
)

func WithConfigs(ctx context.Context, cfg config.Configs) context.Context {
	return context.WithValue(ctx, configsKey{}, cfg)
}

func Configs(ctx context.Context) config.Configs {
	cfg, ok := ctx.Value(configsKey{}).(config.Configs)
	if !ok {
		return config.Configs{}
	}

	return cfg
}

func WithLogger(ctx context.Context, l logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func Logger(ctx context.Context) logger.Logger {
	l, ok := ctx.Value(loggerKey{}).(logger.Logger)
	if !ok {
		return logger.NewLogger(logger.SILENCE)
	}

	return l
}

func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

// DB returns the transaction opened by WithDBTransaction if any, otherwise
// the plain database handle.
func DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction); ok && !tx.done {
		return tx.db
	}

	db, ok := ctx.Value(dbKey{}).(*gorm.DB)
	if !ok {
		return nil
	}

	return db.WithContext(ctx)
}

type dbTransaction struct {
	db   *gorm.DB
	done bool
}

// WithDBTransaction begins a transaction and binds it to the returned
// context. Callers must end it with WithCommitDBTransaction or
// WithRollbackDBTransaction; rolling back after a commit is a no-op.
func WithDBTransaction(ctx context.Context) context.Context {
	if tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction); ok && !tx.done {
		// Nested calls join the outer transaction.
		return ctx
	}

	return context.WithValue(ctx, dbTxKey{}, &dbTransaction{db: DB(ctx).Begin()})
}

func WithCommitDBTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction)
	if !ok || tx.done {
		return nil
	}

	tx.done = true
	return tx.db.Commit().Error
}

func WithRollbackDBTransaction(ctx context.Context) {
	tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction)
	if !ok || tx.done {
		return
	}

	tx.done = true
	tx.db.Rollback()
}

// WithRequestUserID stores the authenticated caller. Callers are identified
// by their lower-cased wallet address.
func WithRequestUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestUserKey{}, id)
}

func RequestUserID(ctx context.Context) string {
	id, ok := ctx.Value(requestUserKey{}).(string)
	if !ok {
		return ""
	}

	return id
}

func WithHTTPRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey{}, r)
}

func HTTPRequest(ctx context.Context) *http.Request {
	r, _ := ctx.Value(httpRequestKey{}).(*http.Request)
	return r
}

func WithHTTPWriter(ctx context.Context, w http.ResponseWriter) context.Context {
	return context.WithValue(ctx, httpWriterKey{}, w)
}

func HTTPWriter(ctx context.Context) http.ResponseWriter {
	w, _ := ctx.Value(httpWriterKey{}).(http.ResponseWriter)
	return w
}

func WithSessionStore(ctx context.Context, store sessions.Store) context.Context {
	return context.WithValue(ctx, sessionStoreKey{}, store)
}

func SessionStore(ctx context.Context) sessions.Store {
	store, _ := ctx.Value(sessionStoreKey{}).(sessions.Store)
	return store
}

func WithResponse(ctx context.Context, resp any) context.Context {
	return context.WithValue(ctx, responseKey{}, resp)
}

func Response(ctx context.Context) any {
	return ctx.Value(responseKey{})
}

func WithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, errorKey{}, err)
}

func Error(ctx context.Context) error {
	err, _ := ctx.Value(errorKey{}).(error)
	return err
}

func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func StartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}
