package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Krajiyah/beetle-relay/internal/config"
	"github.com/Krajiyah/beetle-relay/internal/observability"
	"github.com/Krajiyah/beetle-relay/pkg/ble"
	"github.com/Krajiyah/beetle-relay/pkg/fleet"
	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/Krajiyah/beetle-relay/pkg/upstream"
	"github.com/Krajiyah/beetle-relay/pkg/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "relay.toml", "path to the relay TOML config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Error().Err(err).Str("config", *path).Msg("invalid config")
		os.Exit(1)
	}
	logger, err := observability.NewLogger(cfg.Relay.LogLevel, cfg.Relay.LogPretty)
	if err != nil {
		log.Error().Err(err).Msg("invalid log level")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("relay stopped")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("relay shut down")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	peripherals, err := cfg.Fleet()
	if err != nil {
		return err
	}
	relayID := uuid.NewString()
	logger = logger.With().Str("relay_id", relayID).Logger()

	sink, err := newSink(cfg, relayID, logger)
	if err != nil {
		return err
	}
	q := upstream.NewQueue(sink, cfg.Relay.QueueSize, relayID, logger.With().Str("component", "upstream").Logger())
	q.Start()
	defer q.Close()

	reg := prometheus.NewRegistry()
	listener := models.MultiListener{observability.NewMetrics(reg)}
	factory := func(p models.Peripheral) (ble.Transport, error) {
		return ble.NewRealConnection(util.DialTimeout, logger.With().Str("peripheral", p.Name).Logger())
	}
	c := fleet.NewCoordinator(peripherals, factory, q, cfg.Supervisor(), logger, listener)
	reg.MustRegister(observability.NewLinkCollector(c))
	if cfg.Relay.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Relay.MetricsAddr, reg, logger); err != nil {
				logger.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	for _, p := range peripherals {
		logger.Info().Str("peripheral", p.Name).Str("addr", p.Address).Str("role", p.Role.String()).Msg("configured")
	}
	if err := c.Init(ctx); err != nil {
		return errors.Wrap(err, "Fleet init issue")
	}
	return c.Run(ctx)
}

func newSink(cfg config.Config, relayID string, logger zerolog.Logger) (upstream.Sink, error) {
	if cfg.Upstream.Kind == config.UpstreamMQTT {
		sink, err := upstream.NewMQTTSink(cfg.MQTT("beetle-relay-"+relayID[:8]), logger)
		if err != nil {
			return nil, errors.Wrap(err, "MQTT sink issue")
		}
		return sink, nil
	}
	return upstream.NewLogSink(logger), nil
}
