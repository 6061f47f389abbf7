// Package app assembles the broker from configuration: stores, the request
// gates, the Discord connector, the command processor and the admin API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/karigpt-broker/internal/backend"
	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/config"
	"github.com/tbourn/karigpt-broker/internal/gateway/discord"
	httpapi "github.com/tbourn/karigpt-broker/internal/http"
	"github.com/tbourn/karigpt-broker/internal/http/handlers"
	"github.com/tbourn/karigpt-broker/internal/personality"
	"github.com/tbourn/karigpt-broker/internal/services"
)

// App is a fully wired broker.
type App struct {
	cfg    config.Config
	stores *Stores

	Personalities *personality.Registry
	Metrics       *services.MetricsAggregator
	Quota         *services.QuotaTracker
	Commands      *commands.Processor

	gate       *services.Gate
	ingress    *services.Gate
	connector  *discord.Connector
	engine     *gin.Engine
	httpServer *http.Server
	log        zerolog.Logger
}

// New wires every component. Nothing is dialled except the stores.
// backendOverride replaces the generation client when non-nil.
func New(ctx context.Context, cfg config.Config, backendOverride services.Backend) (*App, error) {
	reg, err := personality.Load(cfg.Gate.PersonalitiesFile)
	if err != nil {
		return nil, err
	}
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	loc := cfg.Gate.Location()
	scope := services.ScopeUser
	if cfg.Gate.QuotaScope == config.QuotaScopeGlobal {
		scope = services.ScopeGlobal
	}
	mode := services.TriggerMulti
	if cfg.Gate.TriggerMode == config.TriggerSingle {
		mode = services.TriggerSingle
	}

	quota := services.NewQuotaTracker(stores.Records, cfg.Gate.DailyLimit, cfg.Gate.Cooldown, loc, scope)
	respCache := services.NewResponseCache(stores.Records, stores.Memo)
	metrics := &services.MetricsAggregator{Store: stores.Records, Location: loc}

	var gen services.Backend = backendOverride
	if gen == nil {
		gen = backend.NewClient(backend.Options{
			BaseURL:   cfg.Backend.BaseURL,
			APIKey:    cfg.Backend.APIKey,
			Model:     cfg.Backend.Model,
			MaxTokens: cfg.Backend.MaxTokens,
			Timeout:   cfg.Backend.Timeout,
		})
	}
	classifier := backend.NewClassifier(cfg.Backend.OverloadSignals)

	label := ""
	if mode == services.TriggerSingle {
		label = cfg.Gate.TriggerName
	}
	proc := commands.NewProcessor(reg, metrics, quota, loc, label)

	gateOpts := func(ch services.Channel) services.GateOptions {
		return services.GateOptions{
			Mode:                mode,
			TriggerName:         cfg.Gate.TriggerName,
			WatchChannels:       cfg.Gate.WatchChannelIDs,
			Personalities:       reg,
			Cache:               respCache,
			Quota:               quota,
			Backend:             gen,
			Channel:             ch,
			IsTransientOverload: classifier.IsTransientOverload,
		}
	}

	conn := discord.New(discord.Options{
		Token:           cfg.Discord.Token,
		APIBase:         cfg.Discord.APIBase,
		GatewayURL:      cfg.Discord.GatewayURL,
		ApplicationID:   cfg.Discord.ApplicationID,
		CommandSync:     cfg.Discord.CommandSync,
		CommandGuildIDs: cfg.Discord.CommandGuildIDs,
	})
	gate, err := services.NewGate(gateOpts(conn))
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	conn.Bind(gate, proc)

	a := &App{
		cfg:           cfg,
		stores:        stores,
		Personalities: reg,
		Metrics:       metrics,
		Quota:         quota,
		Commands:      proc,
		gate:          gate,
		connector:     conn,
		log:           log.With().Str("component", "app").Logger(),
	}

	if cfg.HTTPEnabled {
		ingress, err := services.NewGate(gateOpts(handlers.CaptureChannel{}))
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		a.ingress = ingress
		a.engine = a.buildEngine()
		a.httpServer = &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           a.engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		}
	}
	return a, nil
}

func (a *App) buildEngine() *gin.Engine {
	gin.SetMode(a.cfg.GinMode)
	r := gin.New()
	deps := handlers.Deps{
		Personalities: a.Personalities,
		Metrics:       a.Metrics,
		Quota:         a.Quota,
		Stats:         a.stores.Stats,
		Gate:          a.ingress,
		Commands:      a.Commands,
		Receipts:      a.stores.Receipts,
		Location:      a.cfg.Gate.Location(),
	}
	httpapi.RegisterRoutes(r, a.cfg, deps, a.stores.Receipts.Seen)
	return r
}

// Stores exposes the persistence bundle.
func (a *App) Stores() *Stores { return a.stores }

// Handler is the admin API, or nil when HTTP is disabled.
func (a *App) Handler() http.Handler {
	if a.engine == nil {
		return nil
	}
	return a.engine
}

// Close drains dispatched gateway events, stops both gates and waits for
// their in-flight requests and record tasks, then closes the stores. Call
// it after Run has returned.
func (a *App) Close() error {
	a.connector.Wait()
	a.gate.Close()
	if a.ingress != nil {
		a.ingress.Close()
	}
	if err := a.stores.Close(); err != nil {
		return fmt.Errorf("close stores: %w", err)
	}
	return nil
}

func serveHTTP(srv *http.Server) error {
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
