package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/raglab-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second per client on
	// the generation endpoints.
	defaultRateLimit = 10
	// defaultRateBurst is the bucket size per client.
	defaultRateBurst = 20
	// idleTTL is how long a client's bucket survives without requests.
	idleTTL = 5 * time.Minute
	// sweepInterval is how often idle buckets are dropped.
	sweepInterval = time.Minute
)

// bucket is one client's token bucket and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles generation requests per client address. Every
// /api/chat and /api/route call costs one LLM round trip, so the buckets
// sit in front of those two handlers only.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	log     *slog.Logger

	// onReject is called with the handler name of every throttled request.
	onReject func(handler string)
	// now is swapped in tests.
	now func() time.Time
}

// newRateLimiter starts the idle-bucket sweeper and returns the limiter with
// the function that stops the sweeper.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		log:      log,
		onReject: func(string) {},
		now:      time.Now,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// reserve takes a token for client, returning how long the caller would have
// to wait when no token is available. A zero duration means the request may
// proceed.
func (rl *rateLimiter) reserve(client string) time.Duration {
	rl.mu.Lock()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = b
	}
	now := rl.now()
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Duration(math.MaxInt64)
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
	}
	return delay
}

// sweep drops buckets idle for longer than idleTTL.
func (rl *rateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleTTL)
	dropped := 0
	for client, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, client)
			dropped++
		}
	}
	return dropped
}

// size reports the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// wrap throttles next, registered under handler for metrics. Throttled
// requests get 429 with a JSON body and a Retry-After in whole seconds.
func (rl *rateLimiter) wrap(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		wait := rl.reserve(client)
		if wait <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		rl.onReject(handler)
		logging.FromContext(r.Context()).Warn("server: rate limited",
			slog.String("client", client),
			slog.String("handler", handler),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		writeError(w, http.StatusTooManyRequests, "too many requests, slow down and retry")
	})
}

// retryAfterSeconds rounds a wait up to whole seconds, capped at one hour.
func retryAfterSeconds(wait time.Duration) int {
	if wait > time.Hour {
		return 3600
	}
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP is the host part of RemoteAddr. X-Forwarded-For is ignored; a
// reverse proxy in front of the server must rewrite RemoteAddr itself.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(addr, ':'); i > 0 {
		return addr[:i]
	}
	return addr
}
