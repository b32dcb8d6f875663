package stremio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// mediaNameKey is the key under which the meta handler stores the served movie's name in the Fiber context locals.
const mediaNameKey = "mediaName"

// NewLogger creates a new logger with sane defaults and the passed level and encoding.
// Supported levels are: debug, info, warn, error.
// Supported encodings are: console, json.
func NewLogger(level, encoding string) (*zap.Logger, error) {
	logLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse log level: %w", err)
	}
	if encoding != "console" && encoding != "json" {
		return nil, fmt.Errorf("unsupported log encoding %q", encoding)
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = logLevel
	logConfig.Encoding = encoding
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	logConfig.Sampling = nil

	return logConfig.Build()
}

func createLoggingMiddleware(logger *zap.Logger, logIPs, logUserAgent, logMediaName bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// The error handler only runs after the middleware chain, so for errors we take the status from the error.
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		fields := []zap.Field{
			zap.Duration("duration", time.Since(start)),
			zap.Int("status", status),
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
		}
		if logIPs {
			fields = append(fields, zap.String("ip", c.IP()), zap.Strings("forwardedFor", c.IPs()))
		}
		if logUserAgent {
			fields = append(fields, zap.String("userAgent", c.Get(fiber.HeaderUserAgent)))
		}
		if logMediaName {
			if mediaName, ok := c.Locals(mediaNameKey).(string); ok {
				fields = append(fields, zap.String("mediaName", mediaName))
			}
		}

		logger.Info("Handled request", fields...)
		return err
	}
}
