// Package ratelimit throttles form submissions per client with a fixed
// window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/incosense/incosense/internal/pkg/httputil"
	"github.com/incosense/incosense/internal/pkg/logger"
)

// INCR and the first-hit PEXPIRE run in one script so a crash between them
// cannot leave a counter without a TTL.
const fixedWindowLuaScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

const keyPrefix = "ratelimit:subscriptions:"

// Result is the state of one client's window after a request.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows at most limit requests per window for each key.
type Limiter struct {
	redis  redis.Scripter
	script *redis.Script
	limit  int
	window time.Duration
	log    *logger.Logger

	trusted []*net.IPNet
}

// New creates a limiter on an existing client.
func New(client redis.Scripter, limit int, window time.Duration) *Limiter {
	return &Limiter{
		redis:  client,
		script: redis.NewScript(fixedWindowLuaScript),
		limit:  limit,
		window: window,
		log:    logger.Default(),
	}
}

// NewFromURL connects to Redis and verifies the connection.
func NewFromURL(ctx context.Context, redisURL string, limit int, window time.Duration) (*Limiter, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return New(client, limit, window), client, nil
}

// WithLogger replaces the logger used for fail-open warnings.
func (l *Limiter) WithLogger(log *logger.Logger) *Limiter {
	l.log = log
	return l
}

// WithTrustedProxies lists the networks whose X-Forwarded-For entries are
// believed. Requests from any other peer are keyed on the peer address.
func (l *Limiter) WithTrustedProxies(nets []*net.IPNet) *Limiter {
	l.trusted = nets
	return l
}

// ParseCIDRs parses proxy networks such as "10.0.0.0/8". A bare address is
// treated as a single-host network.
func ParseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if !strings.Contains(c, "/") {
			ip := net.ParseIP(c)
			if ip == nil {
				return nil, fmt.Errorf("invalid proxy address %q", c)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy network %q: %w", c, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := l.script.Run(ctx, l.redis, []string{keyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected script reply %v", key, res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	if count > l.limit {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: l.limit - count}, nil
}

// Middleware rejects requests over the limit with 429. Redis failures let
// the request through; a broken limiter must not take signups down.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := l.Allow(r.Context(), l.clientKey(r))
		if err != nil {
			l.log.Warn("rate limiter unavailable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			secs := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			httputil.Text(w, http.StatusTooManyRequests, "TooManyRequests: retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type peerKey struct{}

// CapturePeer records the transport peer address before any middleware
// rewrites RemoteAddr from client-supplied headers. It must run ahead of
// chi's RealIP.
func CapturePeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func peerAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(peerKey{}).(string); ok {
		return addr
	}
	return r.RemoteAddr
}

// clientKey is the peer IP. Only when the peer is a trusted proxy is
// X-Forwarded-For consulted, walking right to left past trusted hops; the
// leftmost entries are whatever the client wrote and are never used unless
// every hop after them is trusted.
func (l *Limiter) clientKey(r *http.Request) string {
	host := hostOnly(peerAddr(r))
	if !l.isTrusted(net.ParseIP(host)) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		if !l.isTrusted(ip) {
			return ip.String()
		}
	}
	return host
}

func (l *Limiter) isTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
