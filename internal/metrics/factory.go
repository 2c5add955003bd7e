// Package metrics provides Prometheus metrics for the factory test port.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factoryd",
		Subsystem: "commands",
		Name:      "total",
		Help:      "Commands received on the test port by result",
	}, []string{"command", "result"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "factoryd",
		Subsystem: "commands",
		Name:      "duration_seconds",
		Help:      "Time spent handling a command",
		Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"command"})

	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factoryd",
		Subsystem: "server",
		Name:      "connections_total",
		Help:      "Test clients accepted",
	})

	clientConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factoryd",
		Subsystem: "server",
		Name:      "client_connected",
		Help:      "1 while a test client is connected",
	})

	flashWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factoryd",
		Subsystem: "flash",
		Name:      "mac_writes_total",
		Help:      "MAC addresses written to flash per interface",
	}, []string{"interface"})

	ledsOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factoryd",
		Subsystem: "led",
		Name:      "on",
		Help:      "1 when the status LEDs were last driven on",
	})

	testPassed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factoryd",
		Name:      "test_passed",
		Help:      "1 once the test pass flag has been persisted",
	})

	rebootsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factoryd",
		Name:      "reboots_requested_total",
		Help:      "Reboot commands received",
	})

	// Local copy of the counters for the admin API.
	summary   Summary
	summaryMu sync.RWMutex
)

// Summary holds current values for the admin API.
type Summary struct {
	Commands        map[string]uint64 `json:"commands"` // "command/result" -> count
	Connections     uint64            `json:"connections"`
	ClientConnected bool              `json:"client_connected"`
	MACWrites       uint64            `json:"mac_writes"`
	LEDsOn          bool              `json:"leds_on"`
	TestPassed      bool              `json:"test_passed"`
}

// RecordCommand counts a handled command.
func RecordCommand(command, result string, d time.Duration) {
	commandsTotal.WithLabelValues(command, result).Inc()
	commandDuration.WithLabelValues(command).Observe(d.Seconds())
	update(func(s *Summary) {
		if s.Commands == nil {
			s.Commands = make(map[string]uint64)
		}
		s.Commands[command+"/"+result]++
	})
}

// SetClientConnected tracks the test client. Each connect is counted.
func SetClientConnected(connected bool) {
	if connected {
		connectionsTotal.Inc()
		clientConnected.Set(1)
	} else {
		clientConnected.Set(0)
	}
	update(func(s *Summary) {
		if connected {
			s.Connections++
		}
		s.ClientConnected = connected
	})
}

// RecordMACWrite counts a MAC written to flash.
func RecordMACWrite(iface string) {
	flashWrites.WithLabelValues(iface).Inc()
	update(func(s *Summary) { s.MACWrites++ })
}

// SetLEDsOn records the last LED level.
func SetLEDsOn(on bool) {
	ledsOn.Set(boolToFloat(on))
	update(func(s *Summary) { s.LEDsOn = on })
}

// SetTestPassed records that the test pass flag is set.
func SetTestPassed(passed bool) {
	testPassed.Set(boolToFloat(passed))
	update(func(s *Summary) { s.TestPassed = passed })
}

// RecordRebootRequested counts a reboot command.
func RecordRebootRequested() {
	rebootsRequested.Inc()
}

// GetSummary returns a copy of the current values.
func GetSummary() Summary {
	summaryMu.RLock()
	defer summaryMu.RUnlock()

	out := summary
	out.Commands = make(map[string]uint64, len(summary.Commands))
	for k, v := range summary.Commands {
		out.Commands[k] = v
	}
	return out
}

func update(fn func(*Summary)) {
	summaryMu.Lock()
	defer summaryMu.Unlock()
	fn(&summary)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
