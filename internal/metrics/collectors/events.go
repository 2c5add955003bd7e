// Package collectors feeds the factory metrics from the event bus.
package collectors

import (
	"sync"

	"github.com/smazurov/factoryd/internal/events"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/smazurov/factoryd/internal/metrics"
	"github.com/smazurov/factoryd/internal/protocol"
)

// unknownCommand labels commands outside the command table, so client input
// never becomes a label value.
const unknownCommand = "unknown"

// EventCollector records metrics for events published on the bus.
type EventCollector struct {
	logger  logging.Logger
	bus     *events.Bus
	mu      sync.Mutex
	unsubs  []func()
	started bool
}

// NewEventCollector creates a collector for bus.
func NewEventCollector(bus *events.Bus) *EventCollector {
	return &EventCollector{
		logger: logging.GetLogger("metrics"),
		bus:    bus,
	}
}

// Start subscribes to the bus.
func (c *EventCollector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(func(e events.CommandHandledEvent) {
			name := e.Command
			if !protocol.IsCommand(name) {
				name = unknownCommand
			}
			metrics.RecordCommand(name, e.Result, e.Duration)
		}),
		c.bus.Subscribe(func(e events.ClientConnectionEvent) {
			metrics.SetClientConnected(e.Connected)
		}),
		c.bus.Subscribe(func(e events.MACWrittenEvent) {
			metrics.RecordMACWrite(e.Interface)
		}),
		c.bus.Subscribe(func(e events.LEDStateChangedEvent) {
			metrics.SetLEDsOn(e.On)
		}),
		c.bus.Subscribe(func(events.TestPassedEvent) {
			metrics.SetTestPassed(true)
		}),
		c.bus.Subscribe(func(events.RebootRequestedEvent) {
			metrics.RecordRebootRequested()
		}),
	)
	c.logger.Info("Event metrics collection started")
	return nil
}

// Stop unsubscribes from the bus.
func (c *EventCollector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.started = false
	return nil
}
