package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mgbridge/internal/config"
	"mgbridge/internal/domoticz"
	"mgbridge/internal/geo"
	"mgbridge/internal/history"
	"mgbridge/internal/saic"
)

const (
	maxAuthFailures = 5
	maxAuthBackoff  = 10 * time.Minute

	// deepSleepThreshold is how many consecutive sentinel-heavy polls
	// mark the car as deeply asleep.
	deepSleepThreshold = 3

	notifySubject = "MG iSmart Alert"
)

// DeviceGateway is the slice of the Domoticz client the poller uses.
type DeviceGateway interface {
	EnsureDevices(ctx context.Context, vehicleName string) (domoticz.DeviceMap, error)
	UpdateDevice(ctx context.Context, idx, nvalue int, svalue string) error
	SendNotification(ctx context.Context, subject, body string) error
	HomeLocation(ctx context.Context) (lat, lon float64, err error)
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Recorder persists telemetry snapshots.
type Recorder interface {
	Record(ctx context.Context, snap history.Snapshot) error
}

// TelemetryPublisher fans telemetry out to MQTT.
type TelemetryPublisher interface {
	PublishTelemetry(vin string, payload any) error
	PublishEvent(vin, event string) error
}

// VehicleState is the externally visible poller state.
type VehicleState struct {
	VIN       string    `json:"vin"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	LastPoll  time.Time `json:"last_poll"`
	Summary   Summary   `json:"summary"`
	Sleeping  bool      `json:"sleeping"`
	AtHome    bool      `json:"at_home"`
	Address   string    `json:"address,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Stopped   bool      `json:"stopped"`
}

// Poller drives the fetch-translate-update cycle.
type Poller struct {
	client    VehicleAPI
	gateway   DeviceGateway
	commander *Commander
	geocoder  Geocoder
	recorder  Recorder
	publisher TelemetryPublisher
	metrics   *Metrics
	log       zerolog.Logger

	policy        intervalPolicy
	homeRadius    float64
	notifications bool

	// Poll-loop state, owned by the loop goroutine.
	vin         string
	vehicleName string
	devices     domoticz.DeviceMap
	home        *geo.Home

	consecutiveSentinels int
	lastKnownAtHome      bool
	wasCharging          bool
	targetNotified       bool

	mu    sync.RWMutex
	state VehicleState
}

// PollerDeps wires the poller's collaborators. Geocoder, Recorder and
// Publisher may be nil when their features are disabled.
type PollerDeps struct {
	Client    VehicleAPI
	Gateway   DeviceGateway
	Commander *Commander
	Geocoder  Geocoder
	Recorder  Recorder
	Publisher TelemetryPublisher
	Metrics   *Metrics
}

func NewPoller(cfg *config.Config, deps PollerDeps, log zerolog.Logger) *Poller {
	return &Poller{
		client:    deps.Client,
		gateway:   deps.Gateway,
		commander: deps.Commander,
		geocoder:  deps.Geocoder,
		recorder:  deps.Recorder,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       log.With().Str("component", "poller").Logger(),
		policy: intervalPolicy{
			base:           cfg.Polling.Interval(),
			nightCooldown:  cfg.Polling.NightInterval(),
			nightStartHour: cfg.Polling.NightStart(),
			nightEndHour:   cfg.Polling.NightEnd(),
		},
		homeRadius:    float64(cfg.Polling.HomeRadiusMeters),
		notifications: cfg.Domoticz.NotificationsEnabled(),
	}
}

// State returns a snapshot of the last poll.
func (p *Poller) State() VehicleState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Healthy reports whether the loop is still running.
func (p *Poller) Healthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.state.Stopped
}

// Run polls until the context is cancelled or authentication fails
// permanently. The returned error is nil on clean shutdown.
func (p *Poller) Run(ctx context.Context) error {
	authFailures := 0

	for {
		started := time.Now()
		err := p.pollOnce(ctx)
		took := time.Since(started)

		var wait time.Duration
		switch {
		case err == nil:
			authFailures = 0
			p.metrics.observePoll("success", took)
			p.setError("")
			wait = p.policy.next(time.Now(), p.lastKnownAtHome)

		case saic.IsAuthError(err):
			authFailures++
			p.metrics.observePoll("auth_error", took)
			p.metrics.authFailures.Inc()
			p.setError(err.Error())
			p.log.Error().Err(err).Int("failures", authFailures).Msg("authentication failed")

			p.client.InvalidateToken(ctx)
			p.vin = "" // force rediscovery after relogin

			if authFailures >= maxAuthFailures {
				p.markStopped()
				return fmt.Errorf("giving up after %d authentication failures: %w", maxAuthFailures, err)
			}
			wait = p.policy.base * 2
			if wait > maxAuthBackoff {
				wait = maxAuthBackoff
			}

		default:
			p.metrics.observePoll("error", took)
			p.setError(err.Error())
			p.log.Error().Err(err).Msg("poll failed")
			wait = p.policy.base
		}

		p.metrics.pollIntervalSecs.Set(wait.Seconds())
		p.log.Debug().Dur("wait", wait).Msg("sleeping until next poll")

		select {
		case <-ctx.Done():
			p.markStopped()
			return nil
		case <-time.After(wait):
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	if p.vin == "" {
		if err := p.discoverVehicle(ctx); err != nil {
			return err
		}
	}

	devices, err := p.gateway.EnsureDevices(ctx, p.vehicleName)
	if err != nil {
		return fmt.Errorf("ensure devices: %w", err)
	}
	p.devices = devices

	status, err := p.client.VehicleStatus(ctx, p.vin)
	if err != nil {
		return fmt.Errorf("vehicle status: %w", err)
	}
	charging, err := p.client.ChargingStatus(ctx, p.vin)
	if err != nil {
		return fmt.Errorf("charging status: %w", err)
	}

	reading := Reading{Status: status, Charging: charging}
	p.resolvePosition(ctx, &reading)

	updates, sum := Translate(reading)

	p.trackSleep(sum)
	p.applyUpdates(ctx, updates)
	p.notifyChargeTransitions(ctx, sum)
	p.commander.ObserveSeatLevels(
		status.BasicVehicleStatus.FrontLeftSeatHeatLevel,
		status.BasicVehicleStatus.FrontRightSeatHeatLevel)

	sleeping := status.BasicVehicleStatus.ExtendedData1 == saic.SentinelByte
	p.metrics.observeSummary(sum, sleeping, reading.AtHome)
	p.record(ctx, sum, reading)
	p.publish(sum, reading, sleeping)

	p.mu.Lock()
	p.state.LastPoll = time.Now()
	p.state.Summary = sum
	p.state.Sleeping = sleeping
	p.state.AtHome = reading.AtHome
	p.state.Address = reading.Address
	p.mu.Unlock()

	return nil
}

func (p *Poller) discoverVehicle(ctx context.Context) error {
	vehicles, err := p.client.VehicleList(ctx)
	if err != nil {
		return fmt.Errorf("vehicle list: %w", err)
	}
	vehicle := vehicles[0]

	p.vin = vehicle.VIN
	p.vehicleName = vehicleDisplayName(vehicle)
	p.commander.SetVIN(vehicle.VIN)

	p.mu.Lock()
	p.state.VIN = vehicle.VIN
	p.state.Name = p.vehicleName
	p.state.Brand = vehicle.BrandName
	p.state.Model = vehicle.ModelName
	p.mu.Unlock()

	p.log.Info().Str("vehicle", p.vehicleName).Msg("vehicle discovered")
	return nil
}

// vehicleDisplayName builds the device name prefix from the model and
// the VIN tail.
func vehicleDisplayName(v saic.Vehicle) string {
	model := strings.ReplaceAll(v.ModelName, "Electric", "")
	model = strings.ReplaceAll(model, "MG ", "")
	model = strings.TrimSpace(model)
	if model == "" {
		model = "Vehicle"
	}
	suffix := "XXXX"
	if len(v.VIN) >= 4 {
		suffix = v.VIN[len(v.VIN)-4:]
	}
	return model + " " + suffix
}

// resolvePosition fills the reading's home/address context from GPS.
func (p *Poller) resolvePosition(ctx context.Context, r *Reading) {
	gps := r.Status.GPSPosition
	if gps == nil || gps.WayPoint == nil {
		r.AtHome = p.lastKnownAtHome
		return
	}
	lat, lon := gps.WayPoint.Position.Lat(), gps.WayPoint.Position.Lon()
	r.HasPosition = true

	if p.home == nil {
		homeLat, homeLon, err := p.gateway.HomeLocation(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("home coordinates unavailable")
		} else {
			p.home = &geo.Home{Lat: homeLat, Lon: homeLon, Radius: p.homeRadius}
		}
	}
	if p.home != nil {
		r.AtHome = p.home.Contains(lat, lon)
		p.lastKnownAtHome = r.AtHome
	}

	if p.geocoder != nil {
		address, err := p.geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			p.log.Warn().Err(err).Msg("reverse geocoding failed")
		} else {
			r.Address = address
		}
	}
	// Inside the home radius the exact address is noise.
	if r.AtHome {
		r.Address = "Home"
	}
}

// trackSleep counts consecutive sentinel-heavy polls.
func (p *Poller) trackSleep(sum Summary) {
	if sum.SleepSignals >= 2 {
		p.consecutiveSentinels++
		if p.consecutiveSentinels >= deepSleepThreshold {
			p.log.Debug().Int("polls", p.consecutiveSentinels).Msg("car in deep sleep")
		}
		return
	}
	p.consecutiveSentinels = 0
}

func (p *Poller) applyUpdates(ctx context.Context, updates []Update) {
	for _, u := range updates {
		idx, ok := p.devices[u.Unit]
		if !ok {
			continue
		}
		if err := p.gateway.UpdateDevice(ctx, idx, u.NValue, u.SValue); err != nil {
			p.metrics.deviceUpdates.WithLabelValues("error").Inc()
			p.log.Warn().Err(err).Int("unit", u.Unit).Msg("device update failed")
			continue
		}
		p.metrics.deviceUpdates.WithLabelValues("success").Inc()
	}
}

// notifyChargeTransitions sends one notification when charging stops
// and one per session when the target SoC is reached.
func (p *Poller) notifyChargeTransitions(ctx context.Context, sum Summary) {
	if !p.wasCharging && sum.IsCharging {
		p.targetNotified = false
		p.publishEvent("charging_started")
	}
	if p.wasCharging && !sum.IsCharging {
		p.notify(ctx, fmt.Sprintf("MG Charging: Stopped. SoC is %.1f%%.", sum.SoCPercent))
		p.publishEvent("charging_stopped")
	}
	if sum.IsCharging && !p.targetNotified && sum.ChargeLimitPercent > 0 && sum.SoCPercent >= float64(sum.ChargeLimitPercent) {
		p.notify(ctx, fmt.Sprintf("MG Charging: Target of %d%% reached (SoC: %.1f%%).", sum.ChargeLimitPercent, sum.SoCPercent))
		p.targetNotified = true
	}
	p.wasCharging = sum.IsCharging
}

func (p *Poller) notify(ctx context.Context, message string) {
	if !p.notifications {
		return
	}
	if err := p.gateway.SendNotification(ctx, notifySubject, message); err != nil {
		p.log.Warn().Err(err).Msg("notification failed")
	}
}

func (p *Poller) record(ctx context.Context, sum Summary, r Reading) {
	if p.recorder == nil {
		return
	}
	snap := history.Snapshot{
		VIN:          p.vin,
		SoCPercent:   sum.SoCPercent,
		RangeKm:      sum.RangeKm,
		Charging:     sum.IsCharging,
		PowerW:       sum.PowerW,
		OdometerKm:   sum.OdometerKm,
		AtHome:       r.AtHome,
		ExteriorTemp: sum.ExteriorTemp,
		InteriorTemp: sum.InteriorTemp,
		AuxVoltage:   sum.AuxVoltage,
	}
	if err := p.recorder.Record(ctx, snap); err != nil {
		p.log.Warn().Err(err).Msg("history record failed")
	}
}

func (p *Poller) publish(sum Summary, r Reading, sleeping bool) {
	if p.publisher == nil {
		return
	}
	payload := map[string]any{
		"soc_percent":      sum.SoCPercent,
		"charging":         sum.IsCharging,
		"range_km":         sum.RangeKm,
		"power_w":          sum.PowerW,
		"odometer_km":      sum.OdometerKm,
		"at_home":          r.AtHome,
		"sleeping":         sleeping,
		"address":          r.Address,
		"charge_limit_pct": sum.ChargeLimitPercent,
	}
	if err := p.publisher.PublishTelemetry(p.vin, payload); err != nil {
		p.log.Warn().Err(err).Msg("mqtt publish failed")
	}
}

func (p *Poller) publishEvent(event string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishEvent(p.vin, event); err != nil {
		p.log.Debug().Err(err).Str("event", event).Msg("mqtt event publish failed")
	}
}

func (p *Poller) setError(msg string) {
	p.mu.Lock()
	p.state.LastError = msg
	p.mu.Unlock()
}

func (p *Poller) markStopped() {
	p.mu.Lock()
	p.state.Stopped = true
	p.mu.Unlock()
}
