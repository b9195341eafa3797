package api

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// visitIgnoredPaths are infrastructure endpoints that would drown the
// analytics in probe traffic.
var visitIgnoredPaths = map[string]struct{}{
	"/health":      {},
	"/ready":       {},
	"/metrics":     {},
	"/favicon.ico": {},
}

// visitMiddleware records page views for GET requests. Recording runs after
// the response on a detached context; a slow or failing analytics write
// never delays or fails the request itself.
func visitMiddleware(visits *service.VisitService) gin.HandlerFunc {
	logger := util.GetLogger()

	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != "GET" {
			return
		}
		if _, skip := visitIgnoredPaths[c.Request.URL.Path]; skip {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		visit := &models.Visit{
			IPAddress: c.ClientIP(),
			UserAgent: nullable(c.Request.UserAgent()),
			UserID:    userID(c),
			PageURL:   c.Request.URL.RequestURI(),
			Referrer:  nullable(c.Request.Referer()),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := visits.Record(ctx, visit); err != nil {
				logger.Warn("Failed to record visit",
					zap.String("path", visit.PageURL),
					zap.Error(err))
			}
		}()
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
