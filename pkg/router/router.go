package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

type HandlerFunc[Request, Response any] func(ctx context.Context, req *Request) (*Response, error)

// MiddlewareFunc runs before or after the handler. A nil returned context
// leaves the current one unchanged.
type MiddlewareFunc func(ctx context.Context) (context.Context, error)

// CloserFunc always runs after the response has been written.
type CloserFunc func(ctx context.Context)

type Router struct {
	rootCtx context.Context
	engine  *gin.Engine

	befores []MiddlewareFunc
	afters  []MiddlewareFunc
	closers []CloserFunc
}

// New creates a router whose requests inherit every value of ctx (configs,
// logger, database, session store).
func New(ctx context.Context) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{rootCtx: ctx, engine: engine}
}

// Branch returns a router sharing the same engine with a copy of the current
// middleware chain. Middlewares added to the branch do not affect the parent.
func (r *Router) Branch() *Router {
	return &Router{
		rootCtx: r.rootCtx,
		engine:  r.engine,
		befores: append([]MiddlewareFunc{}, r.befores...),
		afters:  append([]MiddlewareFunc{}, r.afters...),
		closers: append([]CloserFunc{}, r.closers...),
	}
}

func (r *Router) Before(m MiddlewareFunc) {
	r.befores = append(r.befores, m)
}

func (r *Router) After(m MiddlewareFunc) {
	r.afters = append(r.afters, m)
}

func (r *Router) AddCloser(c CloserFunc) {
	r.closers = append(r.closers, c)
}

func (r *Router) Static(relativePath, root string) {
	r.engine.Static(relativePath, root)
}

// Handler returns the http.Handler serving every registered route, wrapped
// with the CORS policy of allowedOrigins.
func (r *Router) Handler(allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r.engine)
}

func GET[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.engine.GET(pattern, wrapHandler(r, http.MethodGet, handler))
}

func POST[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	r.engine.POST(pattern, wrapHandler(r, http.MethodPost, handler))
}

func wrapHandler[Request, Response any](
	router *Router, method string, handler HandlerFunc[Request, Response],
) gin.HandlerFunc {
	befores, afters, closers := router.befores, router.afters, router.closers

	return func(c *gin.Context) {
		ctx := router.rootCtx
		ctx = xcontext.WithHTTPRequest(ctx, c.Request)
		ctx = xcontext.WithHTTPWriter(ctx, c.Writer)
		ctx = xcontext.WithStartTime(ctx, time.Now())

		ctx, err := serve(ctx, c, method, befores, afters, handler)
		if err != nil {
			ctx = xcontext.WithError(ctx, err)
		}

		writeResponse(ctx, c)

		for _, closer := range closers {
			closer(ctx)
		}
	}
}

func serve[Request, Response any](
	ctx context.Context,
	c *gin.Context,
	method string,
	befores, afters []MiddlewareFunc,
	handler HandlerFunc[Request, Response],
) (context.Context, error) {
	var err error
	for _, m := range befores {
		if ctx, err = runMiddleware(ctx, m); err != nil {
			return ctx, err
		}
	}

	req := new(Request)
	if err := bind(c, method, req); err != nil {
		xcontext.Logger(ctx).Debugf("Cannot bind the request: %v", err)
		return ctx, errorx.New(errorx.BadRequest, "Invalid request")
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return ctx, err
	}

	ctx = xcontext.WithResponse(ctx, resp)
	for _, m := range afters {
		if ctx, err = runMiddleware(ctx, m); err != nil {
			return ctx, err
		}
	}

	return ctx, nil
}

func runMiddleware(ctx context.Context, m MiddlewareFunc) (context.Context, error) {
	newCtx, err := m(ctx)
	if newCtx == nil {
		newCtx = ctx
	}

	return newCtx, err
}

func bind(c *gin.Context, method string, req any) error {
	if len(c.Params) > 0 {
		if err := c.ShouldBindUri(req); err != nil {
			return err
		}
	}

	if method == http.MethodGet {
		return c.ShouldBindQuery(req)
	}

	if c.Request.ContentLength == 0 && !strings.Contains(c.GetHeader("Transfer-Encoding"), "chunked") {
		return nil
	}

	return c.ShouldBindJSON(req)
}
