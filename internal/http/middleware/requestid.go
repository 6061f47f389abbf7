// Package middleware holds the Gin middleware of the admin API: correlation
// ids, redacted access logs, panic recovery, Prometheus instrumentation,
// event dedup, rate limiting and security headers.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	// CallerKey holds the caller identity resolved by Caller.
	CallerKey = "callerID"
	// HeaderCaller names the header a gateway uses to identify the chat user.
	HeaderCaller = "X-User-ID"
)

// RequestID reuses an inbound X-Request-ID or mints a UUIDv4, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Caller copies X-User-ID into the context for rate limiting and logs.
func Caller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderCaller); id != "" {
			c.Set(CallerKey, id)
		}
		c.Next()
	}
}

// CallerID returns the identity stored by Caller, or "".
func CallerID(c *gin.Context) string {
	v, _ := c.Get(CallerKey)
	return asString(v)
}

// Recovery turns a panic into the JSON 500 envelope and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by RedactingLogger,
// or the global logger when none is attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
