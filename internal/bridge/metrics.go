package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes poller state to Prometheus.
type Metrics struct {
	pollTotal        *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	lastSuccess      prometheus.Gauge
	socPercent       prometheus.Gauge
	rangeKm          prometheus.Gauge
	chargingPowerW   prometheus.Gauge
	charging         prometheus.Gauge
	sleeping         prometheus.Gauge
	atHome           prometheus.Gauge
	authFailures     prometheus.Counter
	deviceUpdates    *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	pollIntervalSecs prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		pollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgbridge_poll_total",
			Help: "Poll attempts by result",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mgbridge_poll_duration_seconds",
			Help:    "Time spent fetching and applying one poll",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_last_success_timestamp_seconds",
			Help: "Last successful poll timestamp (epoch seconds)",
		}),
		socPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_battery_soc_percent",
			Help: "Battery state of charge",
		}),
		rangeKm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_range_km",
			Help: "Electric range reported by the cluster",
		}),
		chargingPowerW: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_charging_power_watts",
			Help: "Estimated charging power",
		}),
		charging: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_charging",
			Help: "1 while a charge session is active",
		}),
		sleeping: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_vehicle_sleeping",
			Help: "1 while the car reports sentinel telemetry",
		}),
		atHome: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_vehicle_at_home",
			Help: "1 while the car is inside the home radius",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mgbridge_auth_failures_total",
			Help: "Authentication failures against the iSmart gateway",
		}),
		deviceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgbridge_domoticz_updates_total",
			Help: "Domoticz device updates by result",
		}, []string{"result"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgbridge_commands_total",
			Help: "Remote commands by name and result",
		}, []string{"command", "result"}),
		pollIntervalSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgbridge_poll_interval_seconds",
			Help: "Interval chosen for the next poll",
		}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pollTotal, m.pollDuration, m.lastSuccess, m.socPercent, m.rangeKm,
		m.chargingPowerW, m.charging, m.sleeping, m.atHome, m.authFailures,
		m.deviceUpdates, m.commandsTotal, m.pollIntervalSecs,
	}
}

func (m *Metrics) observePoll(result string, took time.Duration) {
	m.pollTotal.WithLabelValues(result).Inc()
	m.pollDuration.Observe(took.Seconds())
	if result == "success" {
		m.lastSuccess.SetToCurrentTime()
	}
}

func (m *Metrics) observeSummary(sum Summary, sleeping, atHome bool) {
	m.socPercent.Set(sum.SoCPercent)
	m.rangeKm.Set(float64(sum.RangeKm))
	m.chargingPowerW.Set(sum.PowerW)
	m.charging.Set(boolGauge(sum.IsCharging))
	m.sleeping.Set(boolGauge(sleeping))
	m.atHome.Set(boolGauge(atHome))
}

// ObserveCommand records a remote command outcome. Exported for the
// HTTP layer.
func (m *Metrics) ObserveCommand(command string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.commandsTotal.WithLabelValues(command, result).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
