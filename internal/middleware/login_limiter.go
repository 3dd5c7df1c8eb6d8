package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/pkg/logger"
	"github.com/sitetrack/backend/pkg/response"
	"golang.org/x/time/rate"
)

const (
	loginBodyLimit   = 64 << 10
	limiterSweepTick = 3 * time.Minute
	limiterIdleAfter = 5 * time.Minute
)

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts per (client IP, phone) pair, with a
// looser ceiling per client IP so rotating phone numbers does not help.
type LoginLimiter struct {
	mu      sync.Mutex
	pairs   map[string]*trackedLimiter
	clients map[string]*trackedLimiter

	rps   rate.Limit
	burst int
	now   func() time.Time
}

// NewLoginLimiter allows burst attempts per phone from one IP, refilled at
// rps. Each IP may spend four times that across all phones.
func NewLoginLimiter(rps float64, burst int) *LoginLimiter {
	l := newLoginLimiter(rps, burst)
	go func() {
		ticker := time.NewTicker(limiterSweepTick)
		defer ticker.Stop()
		for range ticker.C {
			l.sweep()
		}
	}()
	return l
}

func newLoginLimiter(rps float64, burst int) *LoginLimiter {
	return &LoginLimiter{
		pairs:   make(map[string]*trackedLimiter),
		clients: make(map[string]*trackedLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *LoginLimiter) get(m map[string]*trackedLimiter, key string, r rate.Limit, burst int, now time.Time) *rate.Limiter {
	v, ok := m[key]
	if !ok {
		v = &trackedLimiter{limiter: rate.NewLimiter(r, burst)}
		m[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// reserve charges one attempt against both buckets. It returns how long the
// caller should wait when either bucket is empty.
func (l *LoginLimiter) reserve(ip, phone string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	client := l.get(l.clients, ip, l.rps*4, l.burst*4, now)
	pair := l.get(l.pairs, ip+"|"+phone, l.rps, l.burst, now)

	if !client.AllowN(now, 1) {
		return false, retryAfter(client, now)
	}
	if !pair.AllowN(now, 1) {
		return false, retryAfter(pair, now)
	}
	return true, 0
}

func retryAfter(lim *rate.Limiter, now time.Time) time.Duration {
	r := lim.ReserveN(now, 1)
	defer r.CancelAt(now)
	if !r.OK() {
		return time.Second
	}
	return r.DelayFrom(now)
}

// sweep forgets buckets idle for longer than limiterIdleAfter.
func (l *LoginLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-limiterIdleAfter)
	for _, m := range []map[string]*trackedLimiter{l.pairs, l.clients} {
		for key, v := range m {
			if v.lastSeen.Before(cutoff) {
				delete(m, key)
			}
		}
	}
}

func (l *LoginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pairs) + len(l.clients)
}

// Middleware reads the phone from the JSON body and leaves the body intact
// for the login handler.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := peekLoginPhone(c)
		ip := c.ClientIP()

		ok, wait := l.reserve(ip, phone)
		if !ok {
			logger.Warn().Str("ip", ip).Str("phone", phone).Msg("[Auth] Login attempts throttled")
			seconds := int(wait.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Response{
				Code:    http.StatusTooManyRequests,
				Message: "too many login attempts, please try again later",
			})
			return
		}
		c.Next()
	}
}

func peekLoginPhone(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	head, _ := io.ReadAll(io.LimitReader(c.Request.Body, loginBodyLimit))
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), c.Request.Body))

	var body struct {
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(head, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Phone)
}
