package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mgbridge/internal/bridge"
	"mgbridge/internal/config"
	"mgbridge/internal/domoticz"
	"mgbridge/internal/geo"
	"mgbridge/internal/history"
	"mgbridge/internal/logging"
	"mgbridge/internal/mqtt"
	"mgbridge/internal/saic"
	"mgbridge/internal/server"
	"mgbridge/internal/tokenstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mgbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging)
	log.Info().Str("config", *configPath).Msg("starting mgbridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Token persistence, optionally mirrored to S3.
	var mirror tokenstore.BlobStore
	if cfg.Token.S3.Enabled {
		s3, err := tokenstore.NewS3Store(cfg.Token.S3)
		if err != nil {
			return fmt.Errorf("token mirror: %w", err)
		}
		mirror = s3
	}
	tokens := tokenstore.NewFileStore(cfg.Token.Path, cfg.SAIC.Username, cfg.SAIC.Password, mirror, log)

	client, err := saic.NewClient(saic.Config{
		Username: cfg.SAIC.Username,
		Password: cfg.SAIC.Password,
		Region:   cfg.SAIC.Region,
		BaseURL:  cfg.SAIC.BaseURL,
	}, tokens, log)
	if err != nil {
		return err
	}

	gateway := domoticz.NewClient(cfg.Domoticz.BaseURL, cfg.Domoticz.HardwareIdx, log)
	commander := bridge.NewCommander(client)
	metrics := bridge.NewMetrics()

	deps := bridge.PollerDeps{
		Client:    client,
		Gateway:   gateway,
		Commander: commander,
		Metrics:   metrics,
	}

	if cfg.Geocode.On() {
		deps.Geocoder = geo.NewGeocoder(cfg.Geocode.UserAgent)
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer store.Close()
		deps.Recorder = store
	}

	publisher, err := mqtt.Connect(cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
		deps.Publisher = publisher
	}

	poller := bridge.NewPoller(cfg, deps, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpServer := server.New(cfg.HTTP.Addr, commander, poller, metrics, registry, log)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Run(ctx) }()
	go func() {
		// A dead poller keeps the process up so /health can report the
		// failure; only a server error tears the process down.
		if err := poller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("poller stopped")
		}
	}()

	err = <-errCh
	stop()
	if err != nil {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
