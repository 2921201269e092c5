package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/3cpo-dev/teatime/internal/brew"
	"github.com/3cpo-dev/teatime/internal/core"
	"github.com/3cpo-dev/teatime/internal/kettle"
	"github.com/3cpo-dev/teatime/internal/scraper"
	"github.com/3cpo-dev/teatime/internal/telemetry"
)

// Resolve the configuration and the telemetry shared by every command
func resolveConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	return core.LoadConfig(cfgPath)
}

type instruments struct {
	metrics  *telemetry.Collector
	tracer   trace.Tracer
	shutdown telemetry.ShutdownFunc
}

func startTelemetry(cmd *cobra.Command, cfg core.Config) (instruments, error) {
	opts := telemetry.TraceOptions{Version: version, OTLPEndpoint: cfg.Telemetry.OTLPEndpoint}
	if on, _ := cmd.Flags().GetBool("trace"); on || cfg.Telemetry.TraceStdout {
		opts.Stdout = cmd.ErrOrStderr()
	}
	tp, shutdown, err := telemetry.NewTracerProvider(cmd.Context(), opts)
	if err != nil {
		return instruments{}, err
	}
	return instruments{
		metrics:  telemetry.NewCollector(cfg.Telemetry.Enabled),
		tracer:   tp.Tracer("github.com/3cpo-dev/teatime"),
		shutdown: shutdown,
	}, nil
}

func (in instruments) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := in.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Tracer shutdown failed")
	}
	in.metrics.Flush(log.Logger.With().Str("component", "Telemetry").Logger())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Make a cup of tea
func newBrewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brew",
		Short: "Boil water, prepare snacks concurrently and serve a cup of tea",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("kettle-url") {
				cfg.Kettle.URL, _ = cmd.Flags().GetString("kettle-url")
			}
			if cmd.Flags().Changed("fallback-delay") {
				cfg.Brew.FallbackDelay, _ = cmd.Flags().GetDuration("fallback-delay")
			}
			if cmd.Flags().Changed("background-delay") {
				cfg.Brew.BackgroundDelay, _ = cmd.Flags().GetDuration("background-delay")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			in, err := startTelemetry(cmd, cfg)
			if err != nil {
				return err
			}
			defer in.close()

			client := kettle.NewClient(cfg.Kettle.Timeout, cfg.Kettle.Token)
			defer client.Close()

			opts := brew.Options{Logger: log.Logger, Metrics: in.metrics, Tracer: in.tracer}
			probe := kettle.NewHTTPProbe(client, cfg.Kettle.URL, log.Logger, in.metrics, in.tracer)
			maker := brew.New(probe, nil, brew.Config{
				FallbackDelay:   cfg.Brew.FallbackDelay,
				BackgroundDelay: cfg.Brew.BackgroundDelay,
			}, opts)

			log.Info().Str("component", "Program").Msg("=== Tea Making Process ===")
			rep, runErr := maker.Run(cmd.Context())
			log.Info().Str("component", "Program").Msgf("Total elapsed time: %.2fs", rep.Duration().Seconds())

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), rep.API()); err != nil {
					return err
				}
			} else if runErr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "=== Tea is ready! ===")
			}
			if runErr != nil {
				return fmt.Errorf("make tea: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().String("kettle-url", core.DefaultKettleURL, "smart kettle status endpoint")
	cmd.Flags().Duration("fallback-delay", brew.BoilingTime, "boiling time when the kettle is offline")
	cmd.Flags().Duration("background-delay", brew.SnackPrepTime, "snack preparation time")
	cmd.Flags().Bool("json", false, "print the run report as JSON")
	return cmd
}

// Scrape pages and count words
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Fetch pages concurrently and print the most frequent words",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			urls := cfg.Scrape.URLs
			if len(args) > 0 {
				urls = args
			}
			top := cfg.Scrape.Top
			if cmd.Flags().Changed("top") {
				top, _ = cmd.Flags().GetInt("top")
			}
			workers := cfg.Scrape.Concurrency
			if cmd.Flags().Changed("concurrency") {
				workers, _ = cmd.Flags().GetInt("concurrency")
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			in, err := startTelemetry(cmd, cfg)
			if err != nil {
				return err
			}
			defer in.close()

			client := kettle.NewClient(cfg.Kettle.Timeout, "")
			defer client.Close()

			s, err := scraper.New(client.HTTPClient(), urls, scraper.Options{
				Concurrency:       workers,
				RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
				Logger:            log.Logger,
				Metrics:           in.metrics,
			})
			if err != nil {
				return err
			}

			rep, err := s.ScrapeAndAggregate(cmd.Context())
			if err != nil {
				return err
			}
			if top > 0 && len(rep.Top) > top {
				rep.Top = rep.Top[:top]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, rep)
			}
			fmt.Fprintf(out, "Aggregated word counts (top %d, desc):\n", top)
			for _, wc := range rep.Top {
				fmt.Fprintf(out, "%s: %d\n", wc.Word, wc.Count)
			}
			fmt.Fprintf(out, "\nTotal elapsed time: %.2fs\n", float64(rep.DurationMS)/1000)
			return nil
		},
	}
	cmd.Flags().Int("top", core.DefaultScrapeTop, "number of words to print")
	cmd.Flags().Int("concurrency", core.DefaultScrapeWorkers, "pages fetched at once")
	cmd.Flags().Bool("json", false, "print the scrape report as JSON")
	return cmd
}

// Write the default configuration
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file. Run this the first time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = core.DefaultConfigPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			written, err := core.WriteConfig(path, core.DefaultConfig(), force)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "config already exists at %s (use --force to overwrite)\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}
