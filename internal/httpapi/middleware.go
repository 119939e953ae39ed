package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"go.uber.org/zap"
)

const (
	headerRoom    = "X-Chess-Room"
	headerPlayer  = "X-Chess-Player"
	headerSession = "X-Chess-Session"

	metaKey = "chess.meta"
)

// requireMeta reads the player identity from headers, or from query
// parameters for browser websocket clients that cannot set headers.
func requireMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := svc.SessionMeta{
			SessionID: firstNonEmpty(c.GetHeader(headerSession), c.Query("session")),
			Room:      firstNonEmpty(c.GetHeader(headerRoom), c.Query("room")),
			Sender:    firstNonEmpty(c.GetHeader(headerPlayer), c.Query("player")),
		}
		if meta.Sender == "" {
			c.AbortWithStatusJSON(400, gin.H{"code": "bad_request", "message": "missing " + headerPlayer + " header"})
			return
		}
		c.Set(metaKey, meta)
		c.Next()
	}
}

func metaFrom(c *gin.Context) svc.SessionMeta {
	v, _ := c.Get(metaKey)
	meta, _ := v.(svc.SessionMeta)
	return meta
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Info("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
