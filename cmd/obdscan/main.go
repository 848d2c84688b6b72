package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/macduff/obdscan/internal/obd"
	"github.com/macduff/obdscan/internal/poll"
	"github.com/macduff/obdscan/internal/serialport"
	"github.com/macduff/obdscan/internal/server"
	"github.com/macduff/obdscan/web"
)

func main() {
	configPath := flag.String("config", "/etc/obdscan/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run against a simulated ELM327 adapter")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *demo {
		cfg.Interface = "sim"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		log = log.Level(lvl)
	}
	log.Info().Msg("obdscan starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	var port poll.Port
	switch cfg.Interface {
	case "sim":
		port = serialport.NewSim()
	default:
		elm := serialport.New(cfg.Serial, log)
		// Open in the background with backoff. The dashboard starts
		// regardless; the engine reports the port as not ready until the
		// open succeeds.
		go openWithRetry(ctx, elm, log, 10)
		port = elm
	}

	table := obd.NewTable()
	ticks := &poll.TickCounter{}
	go ticks.Run(ctx)
	rate := poll.NewRateEstimator(ticks)

	srv := server.New(cfg, port, table, rate, web.FS, log)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
	}
}

// openWithRetry attempts to open the serial port with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, then continues at the max
// interval indefinitely.
func openWithRetry(ctx context.Context, elm *serialport.ELM, log zerolog.Logger, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := elm.Open(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Warn().Int("attempt", attempt).Int("max", maxAttempts).
					Err(err).Dur("retry_in", delay).Msg("serial open failed")
			} else {
				log.Warn().Int("attempt", attempt).
					Err(err).Dur("retry_in", delay).Msg("serial open failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Info().Int("attempt", attempt+1).Msg("serial port open")
			return
		}
	}
}
