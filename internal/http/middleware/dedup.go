package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the gateway's event id on ingress calls.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyEventKey   = "event.key"
	ctxKeyReplay     = "event.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// SeenFunc reports whether an event key from source was already processed.
type SeenFunc func(ctx context.Context, source, key string) (bool, error)

// DedupOptions configures EventDedup.
type DedupOptions struct {
	// Source namespaces the keys, for example "http".
	Source string
	// MaxLen caps key length. Zero means 200.
	MaxLen int
	// Pattern restricts key characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// EventDedup validates Idempotency-Key, stores it for handlers (EventKey),
// and marks the request as a replay when seen reports the key as processed.
// Replays skip rate limiting. A lookup failure is treated as not seen.
// Requests without the header pass through untouched.
func EventDedup(opts DedupOptions, seen SeenFunc) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	source := opts.Source
	if source == "" {
		source = "http"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyEventKey, key)
		if seen != nil {
			ok, err := seen(c.Request.Context(), source, key)
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("event dedup lookup failed")
			}
			if ok {
				c.Set(ctxKeyReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// EventKey returns the validated Idempotency-Key, if any.
func EventKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyEventKey)
	s := asString(v)
	return s, s != ""
}

// IsReplay reports whether EventDedup found the key already processed.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyReplay)
}
