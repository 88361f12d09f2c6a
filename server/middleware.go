package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/model"
)

const (
	sessionKey = "movie-mate.session"
	bearerKey  = "movie-mate.bearer"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		event := logging.Debug()
		if status >= http.StatusInternalServerError {
			event = logging.Error()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// withSession attaches the caller's session. A bearer token is resolved to
// its user; without one the persisted session is used. An unrecognised
// token yields a session without identity rather than an error, so public
// endpoints keep working. Whether the identity came from the request's own
// token is recorded for requireAdmin.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		stored, err := s.auth.Session()
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to read stored session")
		}

		token := bearerToken(c.GetHeader("Authorization"))
		session := stored
		if token != "" && (token != stored.Token || !stored.HasIdentity()) {
			session = model.Session{Token: token}
			if user, err := s.auth.Authenticate(c.Request.Context(), token); err == nil {
				session.User = &user
			}
		}

		c.Set(sessionKey, session)
		c.Set(bearerKey, token != "" && session.HasIdentity())
		c.Next()
	}
}

func sessionFrom(c *gin.Context) model.Session {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(model.Session); ok {
			return session
		}
	}
	return model.Session{}
}

// requireAdmin only trusts an identity proven by the request's bearer
// token, never one inherited from the persisted session
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFrom(c)
		if !c.GetBool(bearerKey) || !session.HasIdentity() {
			abortWithMessage(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !session.User.IsAdmin {
			abortWithMessage(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for
// longer than limiterIdleTTL are swept out.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(perSecond float64) *rateLimiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterSweepInterval {
		rl.sweep(now)
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// sweep drops idle buckets; callers hold mu
func (rl *rateLimiter) sweep(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}
		if !rl.allow(c.ClientIP()) {
			abortWithMessage(c, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		c.Next()
	}
}
