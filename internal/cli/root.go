// Package cli defines the karigpt command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/karigpt-broker/internal/app"
	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/config"
	"github.com/tbourn/karigpt-broker/internal/observability"
	"github.com/tbourn/karigpt-broker/internal/personality"
	"github.com/tbourn/karigpt-broker/internal/services"
	"github.com/tbourn/karigpt-broker/internal/sysutil"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=".
var Version = "0.1.0"

// LoadFunc supplies configuration to every subcommand.
type LoadFunc func() (config.Config, error)

// NewRoot builds the root command. A nil load means config.Load.
func NewRoot(load LoadFunc) *cobra.Command {
	if load == nil {
		load = config.Load
	}
	root := &cobra.Command{
		Use:           "karigpt",
		Short:         "KariGPT is a chat-triggered request broker with quotas and answer memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(load))
	root.AddCommand(newMetricsCommand(load))
	root.AddCommand(newPersonalitiesCommand(load))
	root.AddCommand(newVersionCommand())
	return root
}

func loadAndLog(load LoadFunc) (config.Config, error) {
	cfg, err := load()
	if err != nil {
		return cfg, err
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	return cfg, nil
}

func newServeCommand(load LoadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord gateway and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndLog(load)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, Version)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			defer func() {
				flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := shutdownTracing(flushCtx); err != nil {
					log.Warn().Err(err).Msg("tracer shutdown")
				}
			}()

			broker, err := app.New(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := broker.Close(); err != nil {
					log.Error().Err(err).Msg("close broker")
				}
			}()
			return broker.Run(ctx)
		},
	}
}

func newMetricsCommand(load LoadFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the request metrics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndLog(load)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			loc := cfg.Gate.Location()
			agg := &services.MetricsAggregator{Store: stores.Records, Location: loc}
			sum, err := agg.Summarize(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			if sum.Empty {
				fmt.Fprintln(cmd.OutOrStdout(), services.EmptySummaryText)
				return nil
			}
			label := cfg.Gate.TriggerName
			if cfg.Gate.TriggerMode == config.TriggerMulti {
				if reg, err := personality.Load(cfg.Gate.PersonalitiesFile); err == nil {
					label = reg.Default().Label()
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), commands.RenderSummary(sum, label, loc.String()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func newPersonalitiesCommand(load LoadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "personalities",
		Short: "List the configured personalities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAndLog(load)
			if err != nil {
				return err
			}
			reg, err := personality.Load(cfg.Gate.PersonalitiesFile)
			if err != nil {
				return err
			}
			def := reg.Default().Name
			for _, name := range reg.Names() {
				p, _ := reg.Get(name)
				marker := " "
				if name == def {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", marker, p.Name, p.Description)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the broker version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}
