package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
)

type rateLimiter struct {
	mu            sync.Mutex
	window        time.Duration
	last          map[string]time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// RateLimit allows one request per window for each owner, client address
// and route.
func RateLimit(window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		window:        window,
		last:          make(map[string]time.Time),
		sweepInterval: 10 * window,
		now:           time.Now,
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.window <= 0 {
		c.Next()
		return
	}
	ip := c.ClientIP()
	owner := OwnerID(c)
	if owner == "" {
		owner = "-"
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{ip, owner, path}, "|")

	now := l.now()
	l.mu.Lock()
	if l.sweepInterval > 0 && now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	last, exists := l.last[key]
	if exists && now.Sub(last) < l.window {
		l.mu.Unlock()
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("owner_id", owner),
			zap.String("path", path),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	l.last[key] = now
	l.mu.Unlock()
	c.Next()
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, ts := range l.last {
		if now.Sub(ts) >= l.window {
			delete(l.last, key)
		}
	}
	l.lastSweep = now
}
