package httpapi

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nutrifit-backend/internal/handlers"
	"nutrifit-backend/internal/request"
)

// RateLimiter is a per-client token bucket: max requests per window with a
// burst of max. Idle clients are dropped by Sweep.
type RateLimiter struct {
	max    int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*rateClient
}

type rateClient struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max < 1 {
		max = 1
	}
	return &RateLimiter{
		max:     max,
		window:  window,
		every:   rate.Every(window / time.Duration(max)),
		now:     time.Now,
		clients: make(map[string]*rateClient),
	}
}

// allow takes one token for key and reports what is left and, when refused,
// how long until a token is available.
func (rl *RateLimiter) allow(key string) (bool, int, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c := rl.clients[key]
	if c == nil {
		c = &rateClient{lim: rate.NewLimiter(rl.every, rl.max)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	if c.lim.AllowN(now, 1) {
		return true, int(math.Floor(c.lim.TokensAt(now))), 0
	}
	res := c.lim.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return false, 0, wait
}

// Stage short-circuits with 429 once a client has used its budget.
func (rl *RateLimiter) Stage(h *handlers.Handler) Stage {
	return Stage{
		Name: "rate-limit",
		Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
			key := "unknown"
			if rc := request.From(r.Context()); rc != nil && rc.ClientIP != "" {
				key = rc.ClientIP
			}

			ok, remaining, wait := rl.allow(key)
			w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.max))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				h.Error(w, http.StatusTooManyRequests, "Too many requests")
				return nil
			}
			return next(w, r)
		},
	}
}

// Sweep drops clients idle for two windows, every five minutes, until ctx
// is done.
func (rl *RateLimiter) Sweep(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() int {
	cutoff := rl.now().Add(-2 * rl.window)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	dropped := 0
	for k, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, k)
			dropped++
		}
	}
	return dropped
}

// Clients returns how many clients are tracked.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
