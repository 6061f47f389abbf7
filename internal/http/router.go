// Package httpapi wires the admin API: middleware chain, health and
// Prometheus endpoints, optional Swagger UI, and the versioned routes served
// by package handlers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/karigpt-broker/internal/config"
	"github.com/tbourn/karigpt-broker/internal/http/handlers"
	"github.com/tbourn/karigpt-broker/internal/http/middleware"

	// Registers the OpenAPI document served under /swagger.
	_ "github.com/tbourn/karigpt-broker/docs"
)

// ingressSource namespaces Idempotency-Key receipts from the HTTP ingress.
const ingressSource = "http"

// RegisterRoutes installs the middleware chain and routes on r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID, then Caller
//  3. RedactingLogger (attaches the request-scoped logger)
//  4. Recovery
//  5. Body size limit
//  6. Prometheus
//  7. Gzip
//  8. EventDedup (before the limiter so replays bypass it)
//  9. Rate limiter
//  10. CORS and security headers
//
// seen may be nil, in which case Idempotency-Key is validated but never
// matched.
func RegisterRoutes(r *gin.Engine, cfg config.Config, d handlers.Deps, seen middleware.SeenFunc) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID(), middleware.Caller())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.EventDedup(middleware.DedupOptions{Source: ingressSource, MaxLen: 200}, seen))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByCallerOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	d.ReceiptSource = ingressSource
	d.ReceiptTTL = cfg.EventReceiptTTL
	h := handlers.New(d)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/personalities", h.ListPersonalities)
		api.GET("/personalities/:name", h.GetPersonality)

		api.GET("/usage/summary", h.UsageSummary)
		api.GET("/usage/daily", h.DailyStatus)

		if d.Gate != nil {
			api.POST("/messages", h.PostMessage)
		}
	}
}

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderCaller, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "ETag", "Content-Length"}
)

// corsMiddleware allows every origin when none are configured, otherwise
// only the allowlist. ACAO is set before gin-contrib/cors so requests
// without an Origin header still carry it.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    corsMethods,
				AllowHeaders:    corsHeaders,
				ExposeHeaders:   corsExpose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  corsMethods,
			AllowHeaders:  corsHeaders,
			ExposeHeaders: corsExpose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "" and "/" as the root group.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
