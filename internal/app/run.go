package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run starts the gateway connector and the admin API and blocks until ctx
// is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().
		Str("addr", a.addr()).
		Str("trigger_mode", a.cfg.Gate.TriggerMode).
		Int("personalities", a.Personalities.Len()).
		Msg("broker starting")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.connector.Start(groupCtx)
	})
	if a.httpServer != nil {
		group.Go(func() error {
			return serveHTTP(a.httpServer)
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.httpServer.Shutdown(shutdownCtx)
		})
	}

	err := group.Wait()
	a.log.Info().Err(err).Msg("broker stopped")
	return err
}

func (a *App) addr() string {
	if a.httpServer == nil {
		return ""
	}
	return a.httpServer.Addr
}
