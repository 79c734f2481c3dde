// Package logger configures the zap logger and request correlation.
package logger

import (
	"os"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CorrelationIDHeader carries the request correlation id in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

const (
	correlationIDKey = "correlationID"
	// UserIDKey is set by handlers once the caller's identity is known.
	UserIDKey = "userID"
)

// Init builds the global logger from LOG_LEVEL and LOG_FORMAT ("json" or "console").
func Init() (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(os.Getenv("LOG_LEVEL")))
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Middleware assigns a correlation id to every request, reusing an incoming one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// CorrelationID returns the id assigned by Middleware.
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// RequestLogger logs one line per request with the correlation and user ids.
func RequestLogger(l *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(l, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  skipPaths,
		Context: func(c *gin.Context) []zapcore.Field {
			fields := []zapcore.Field{}
			if v := CorrelationID(c); v != "" {
				fields = append(fields, zap.String("correlation_id", v))
			}
			if v := c.GetString(UserIDKey); v != "" {
				fields = append(fields, zap.String("user_id", v))
			}
			return fields
		},
	})
}

// Recovery turns panics into 500s and logs them.
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return ginzap.RecoveryWithZap(l, true)
}
