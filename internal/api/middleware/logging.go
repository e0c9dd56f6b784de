package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/metrics"
	"github.com/bhandras/netconsole/pkg/logger"
)

// LoggingMiddleware logs each request and counts it by method and status.
// Scrapes of /metrics and socket.io polling are logged at trace level.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Inc()

		target := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		logf := logger.Infof
		if noisy(c.FullPath()) {
			logf = logger.Tracef
		}
		logf("http: %s %s -> %d in %v", c.Request.Method, target, status, time.Since(began))
	}
}

func noisy(route string) bool {
	switch route {
	case "/metrics", "/socket.io", "/socket.io/*any":
		return true
	}
	return false
}
