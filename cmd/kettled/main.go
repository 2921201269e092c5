package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/teatime/internal/kettle"
	"github.com/3cpo-dev/teatime/internal/telemetry"
)

func main() {
	addr := flag.String("addr", ":8088", "listen address")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	metrics := telemetry.NewCollector(true)
	srv := &kettle.Server{Version: "dev", Token: os.Getenv("KETTLED_TOKEN"), Metrics: metrics}
	tlsCfg := kettle.LoadTLSConfig()

	go func() {
		var err error
		if tlsCfg.Enabled() {
			err = srv.ListenAndServeTLS(*addr, tlsCfg)
		} else {
			err = srv.ListenAndServe(*addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("kettled stopped")
		}
	}()
	log.Info().Str("addr", *addr).Bool("tls", tlsCfg.Enabled()).Msg("kettled listening")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("kettled shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	metrics.Flush(log.Logger)
}
