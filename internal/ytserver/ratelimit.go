package ytserver

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// maxTrackedClients bounds the limiter table; the least recently seen client is dropped.
const maxTrackedClients = 4096

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedClients) // only fails on size <= 0
	return &clientLimiter{limiters: cache, rps: rate.Limit(rps), burst: burst}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	l, ok := c.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters.Add(key, l)
	}
	c.mu.Unlock()
	return l.Allow()
}

// limit wraps h with per-client rate limiting when configured.
func (s *Server) limit(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r, s.trustedProxies)) {
			engine.IncrRateLimited()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		h(w, r)
	}
}

// parseTrustedProxies accepts bare addresses and CIDR prefixes.
// Invalid entries are logged and skipped.
func parseTrustedProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("ratelimit: ignoring invalid trusted proxy", slog.String("entry", e))
	}
	return out
}

func isTrusted(trusted []netip.Prefix, ip string) bool {
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// clientIP keys the limiter on the connection address. X-Forwarded-For is
// consulted only when that address is a trusted proxy; the rightmost hop not
// belonging to a trusted proxy is the client.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(trusted, host) {
		return host
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(trusted, hop) {
			return hop
		}
	}
	return host
}
