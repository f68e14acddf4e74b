package bluos

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	polls    *prometheus.CounterVec
	commands *prometheus.CounterVec
	online   *prometheus.GaugeVec
	devices  prometheus.Gauge
	dropped  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluos_status_polls_total",
				Help: "Status polls per device by result.",
			},
			[]string{"device", "result"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluos_commands_total",
				Help: "Commands sent to players by command and result.",
			},
			[]string{"device", "command", "result"},
		),
		online: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bluos_device_online",
				Help: "1 if the last status poll of the device succeeded.",
			},
			[]string{"device"},
		),
		devices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bluos_devices_managed",
				Help: "Number of configured BluOS players.",
			},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bluos_commands_dropped_total",
				Help: "Commands discarded because the dispatch queue was full.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.polls, m.commands, m.online, m.devices, m.dropped)
	}
	return m
}

func (m *Metrics) observePoll(device string, err error) {
	m.polls.WithLabelValues(device, result(err)).Inc()
}

func (m *Metrics) observeCommand(device, command string, err error) {
	m.commands.WithLabelValues(device, command, result(err)).Inc()
}

func (m *Metrics) setOnline(device string, online bool) {
	v := 0.0
	if online {
		v = 1
	}
	m.online.WithLabelValues(device).Set(v)
}

func (m *Metrics) forgetDevice(device string) {
	m.online.DeleteLabelValues(device)
}

func (m *Metrics) setDevices(n int) {
	m.devices.Set(float64(n))
}

func (m *Metrics) commandDropped() {
	m.dropped.Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
