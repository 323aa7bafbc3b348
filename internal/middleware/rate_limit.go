package middleware

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/pkg/cache"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/router"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets live in a bounded
// cache and are dropped after being idle.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache[*rate.Limiter]
	trusted []netip.Prefix
	now     func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfigs) (*RateLimiter, error) {
	trusted := make([]netip.Prefix, 0, len(cfg.TrustedProxies))
	for _, s := range cfg.TrustedProxies {
		prefix, err := parsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
		}
		trusted = append(trusted, prefix)
	}

	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerMinute / 60),
		burst:   cfg.Burst,
		buckets: cache.New[*rate.Limiter](cfg.MaxClients, ttl),
		trusted: trusted,
		now:     time.Now,
	}, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}

	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (l *RateLimiter) Middleware() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		if l.limit <= 0 {
			return nil, nil
		}

		bucket := l.buckets.GetOrCreate(l.clientIP(ctx), func() *rate.Limiter {
			return rate.NewLimiter(l.limit, l.burst)
		})

		if !bucket.AllowN(l.now(), 1) {
			return nil, errorx.New(errorx.TooManyRequests, "Too many requests, please slow down")
		}

		return nil, nil
	}
}

func (l *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, prefix := range l.trusted {
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}

	return false
}

// clientIP is the peer address. When the peer is a trusted proxy, the
// X-Forwarded-For chain is walked from the right and the first hop that is
// not a trusted proxy is used.
func (l *RateLimiter) clientIP(ctx context.Context) string {
	req := xcontext.HTTPRequest(ctx)

	peer, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		peer = req.RemoteAddr
	}

	if !l.isTrusted(peer) {
		return peer
	}

	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}

		if !l.isTrusted(hop) {
			return hop
		}
	}

	return peer
}
