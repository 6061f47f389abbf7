// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP admin server, logging, the request store, the Discord gateway, the
// generation backend, quota gating, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"
)

// Quota scopes.
const (
	QuotaScopeUser   = "user"
	QuotaScopeGlobal = "global"
)

// Trigger modes.
const (
	TriggerSingle = "single"
	TriggerMulti  = "multi"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "karigpt-broker")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StoreConfig selects and configures the request-record store.
type StoreConfig struct {
	Driver      string // sqlite|supabase
	SQLitePath  string // DB_PATH
	SupabaseURL string // SUPABASE_URL
	SupabaseKey string // SUPABASE_KEY
	Table       string // STORE_TABLE
}

// CacheConfig configures the optional answer memo in front of the store.
type CacheConfig struct {
	Driver    string        // none|memory|redis
	RedisAddr string        // REDIS_ADDR
	RedisPass string        // REDIS_PASSWORD
	RedisDB   int           // REDIS_DB
	TTL       time.Duration // CACHE_TTL
}

// DiscordConfig configures the websocket gateway connector.
type DiscordConfig struct {
	Token           string
	APIBase         string
	GatewayURL      string
	ApplicationID   string
	CommandSync     bool
	CommandGuildIDs []string
}

// BackendConfig configures the OpenAI-compatible generation backend.
type BackendConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	MaxTokens       int
	Timeout         time.Duration
	OverloadSignals []string
}

// GateConfig holds trigger, quota, and cooldown settings.
type GateConfig struct {
	TriggerMode       string   // single|multi
	TriggerName       string   // used in single mode
	WatchChannelIDs   []string // empty = all channels
	PersonalitiesFile string   // optional YAML file
	DailyLimit        int
	Cooldown          time.Duration
	QuotaScope        string // user|global
	UTCOffsetHours    int    // canonical offset
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	HTTPEnabled       bool          // run the admin API

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	Store   StoreConfig
	Cache   CacheConfig
	Discord DiscordConfig
	Backend BackendConfig
	Gate    GateConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Event dedup for the HTTP ingress
	EventReceiptTTL time.Duration

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		HTTPEnabled:       getbool("HTTP_ENABLED", true),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Store: StoreConfig{
			Driver:      strings.ToLower(getenv("STORE_DRIVER", StoreSQLite)),
			SQLitePath:  getenv("DB_PATH", "karigpt.db"),
			SupabaseURL: getenv("SUPABASE_URL", ""),
			SupabaseKey: getenv("SUPABASE_KEY", ""),
			Table:       getenv("STORE_TABLE", "KariGPT_requests"),
		},
		Cache: CacheConfig{
			Driver:    strings.ToLower(getenv("CACHE_DRIVER", "none")),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			RedisPass: getenv("REDIS_PASSWORD", ""),
			RedisDB:   getint("REDIS_DB", 0),
			TTL:       getdur("CACHE_TTL", 24*time.Hour),
		},
		Discord: DiscordConfig{
			Token:           getenv("DISCORD_TOKEN", ""),
			APIBase:         getenv("DISCORD_API_BASE", "https://discord.com/api/v10"),
			GatewayURL:      getenv("DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
			ApplicationID:   getenv("DISCORD_APPLICATION_ID", ""),
			CommandSync:     getbool("DISCORD_COMMAND_SYNC", true),
			CommandGuildIDs: splitCSV(getenv("DISCORD_COMMAND_GUILD_IDS", "")),
		},
		Backend: BackendConfig{
			BaseURL:         getenv("BACKEND_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			APIKey:          firstEnv("BACKEND_API_KEY", "GEMINI_API_KEY"),
			Model:           getenv("BACKEND_MODEL", "gemini-3-flash-preview"),
			MaxTokens:       getint("BACKEND_MAX_TOKENS", 1000),
			Timeout:         getdur("BACKEND_TIMEOUT", 60*time.Second),
			OverloadSignals: splitCSV(getenv("OVERLOAD_SIGNALS", "")),
		},
		Gate: GateConfig{
			TriggerMode:       strings.ToLower(getenv("TRIGGER_MODE", TriggerMulti)),
			TriggerName:       getenv("TRIGGER_NAME", "KariGPT"),
			WatchChannelIDs:   splitCSV(getenv("WATCH_CHANNEL_IDS", "")),
			PersonalitiesFile: getenv("PERSONALITIES_FILE", ""),
			DailyLimit:        getint("DAILY_LIMIT", 20),
			Cooldown:          getdur("COOLDOWN", 120*time.Second),
			QuotaScope:        strings.ToLower(getenv("QUOTA_SCOPE", QuotaScopeUser)),
			UTCOffsetHours:    getint("CANONICAL_UTC_OFFSET_HOURS", 8),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		EventReceiptTTL: getdur("EVENT_RECEIPT_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "karigpt-broker"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "none"
	}
	cfg.Gate.TriggerName = strings.TrimSpace(cfg.Gate.TriggerName)
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Store.Driver {
	case StoreSQLite:
		if strings.TrimSpace(cfg.Store.SQLitePath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case StoreSupabase:
		if cfg.Store.SupabaseURL == "" || cfg.Store.SupabaseKey == "" {
			return cfg, errors.New("SUPABASE_URL and SUPABASE_KEY must be set for the supabase store")
		}
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: sqlite, supabase")
	}
	if strings.TrimSpace(cfg.Store.Table) == "" {
		return cfg, errors.New("STORE_TABLE must not be empty")
	}
	switch cfg.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return cfg, errors.New("CACHE_DRIVER must be one of: none, memory, redis")
	}
	if cfg.Cache.TTL < 0 {
		return cfg, errors.New("CACHE_TTL must be >= 0")
	}
	switch cfg.Gate.TriggerMode {
	case TriggerSingle:
		if cfg.Gate.TriggerName == "" {
			return cfg, errors.New("TRIGGER_NAME must not be empty in single trigger mode")
		}
	case TriggerMulti:
	default:
		return cfg, errors.New("TRIGGER_MODE must be one of: single, multi")
	}
	switch cfg.Gate.QuotaScope {
	case QuotaScopeUser, QuotaScopeGlobal:
	default:
		return cfg, errors.New("QUOTA_SCOPE must be one of: user, global")
	}
	if cfg.Gate.DailyLimit < 1 {
		return cfg, errors.New("DAILY_LIMIT must be >= 1")
	}
	if cfg.Gate.Cooldown <= 0 {
		return cfg, errors.New("COOLDOWN must be > 0")
	}
	if cfg.Gate.UTCOffsetHours < -12 || cfg.Gate.UTCOffsetHours > 14 {
		return cfg, errors.New("CANONICAL_UTC_OFFSET_HOURS must be between -12 and 14")
	}
	if cfg.Backend.Model == "" {
		return cfg, errors.New("BACKEND_MODEL must not be empty")
	}
	if cfg.Backend.MaxTokens < 1 {
		return cfg, errors.New("BACKEND_MAX_TOKENS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.EventReceiptTTL <= 0 {
		return cfg, errors.New("EVENT_RECEIPT_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the fixed zone for the canonical offset.
func (g GateConfig) Location() *time.Location {
	secs := g.UTCOffsetHours * 3600
	name := "UTC"
	if g.UTCOffsetHours >= 0 {
		name += "+" + strconv.Itoa(g.UTCOffsetHours)
	} else {
		name += strconv.Itoa(g.UTCOffsetHours)
	}
	return time.FixedZone(name, secs)
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// firstEnv returns the first non-empty value among the given keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
