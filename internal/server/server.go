// Package server exposes the bridge's HTTP surface: health, metrics,
// vehicle state, and remote commands.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mgbridge/internal/bridge"
)

const commandTimeout = 30 * time.Second

// Controller executes remote vehicle commands.
type Controller interface {
	Lock(ctx context.Context, lock bool) error
	Climate(ctx context.Context, on bool) error
	Charging(ctx context.Context, start bool) error
	SetChargeLimit(ctx context.Context, level int) error
	SetChargeCurrentLimit(ctx context.Context, level int) error
	SetHeatedSeat(ctx context.Context, side string, level int) error
	SetScheduledCharging(ctx context.Context, level int) error
	BatteryHeating(ctx context.Context, on bool) error
	PortLock(ctx context.Context, lock bool) error
}

// StateSource reports poller state for /health and /api/v1/vehicle.
type StateSource interface {
	State() bridge.VehicleState
	Healthy() bool
}

// Server is the bridge's HTTP endpoint.
type Server struct {
	addr       string
	controller Controller
	state      StateSource
	metrics    *bridge.Metrics
	registry   *prometheus.Registry
	log        zerolog.Logger
	httpServer *http.Server
}

func New(addr string, controller Controller, state StateSource, metrics *bridge.Metrics, registry *prometheus.Registry, log zerolog.Logger) *Server {
	s := &Server{
		addr:       addr,
		controller: controller,
		state:      state,
		metrics:    metrics,
		registry:   registry,
		log:        log.With().Str("component", "server").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/v1/vehicle", s.handleVehicle)

	mux.HandleFunc("/api/v1/command/lock", s.command("lock", func(ctx context.Context, body commandBody) error {
		return s.controller.Lock(ctx, body.boolArg())
	}))
	mux.HandleFunc("/api/v1/command/climate", s.command("climate", func(ctx context.Context, body commandBody) error {
		return s.controller.Climate(ctx, body.boolArg())
	}))
	mux.HandleFunc("/api/v1/command/charging", s.command("charging", func(ctx context.Context, body commandBody) error {
		return s.controller.Charging(ctx, body.boolArg())
	}))
	mux.HandleFunc("/api/v1/command/charge-limit", s.command("charge_limit", func(ctx context.Context, body commandBody) error {
		return s.controller.SetChargeLimit(ctx, body.Level)
	}))
	mux.HandleFunc("/api/v1/command/charge-current-limit", s.command("charge_current_limit", func(ctx context.Context, body commandBody) error {
		return s.controller.SetChargeCurrentLimit(ctx, body.Level)
	}))
	mux.HandleFunc("/api/v1/command/heated-seat", s.command("heated_seat", func(ctx context.Context, body commandBody) error {
		return s.controller.SetHeatedSeat(ctx, body.Side, body.Level)
	}))
	mux.HandleFunc("/api/v1/command/scheduled-charging", s.command("scheduled_charging", func(ctx context.Context, body commandBody) error {
		return s.controller.SetScheduledCharging(ctx, body.Level)
	}))
	mux.HandleFunc("/api/v1/command/battery-heating", s.command("battery_heating", func(ctx context.Context, body commandBody) error {
		return s.controller.BatteryHeating(ctx, body.boolArg())
	}))
	mux.HandleFunc("/api/v1/command/port-lock", s.command("port_lock", func(ctx context.Context, body commandBody) error {
		return s.controller.PortLock(ctx, body.boolArg())
	}))

	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.state.State()
	if !s.state.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  state.LastError,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.State())
}

// commandBody is the shared request shape for all commands. Which
// fields matter depends on the endpoint.
type commandBody struct {
	On    *bool  `json:"on,omitempty"`
	Level int    `json:"level,omitempty"`
	Side  string `json:"side,omitempty"`
}

// boolArg treats a missing "on" as true, so an empty POST means
// "switch it on" / "lock it".
func (b commandBody) boolArg() bool {
	return b.On == nil || *b.On
}

func (s *Server) command(name string, run func(ctx context.Context, body commandBody) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body commandBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()

		err := run(ctx, body)
		s.metrics.ObserveCommand(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("command", name).Msg("command failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		s.log.Info().Str("command", name).Msg("command executed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
