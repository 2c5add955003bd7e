package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeCommandHandled uint32 = iota + 1
	TypeMACWritten
	TypeLEDStateChanged
	TypeClientConnection
	TypeTestPassed
	TypeRebootRequested
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Command results reported in CommandHandledEvent.
const (
	ResultOK      = "ok"
	ResultFail    = "fail"
	ResultIgnored = "ignored"
)

// CommandHandledEvent is published after every decoded command line.
type CommandHandledEvent struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Result   string        `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Type returns the event type identifier for CommandHandledEvent.
func (e CommandHandledEvent) Type() uint32 { return TypeCommandHandled }

// MACWrittenEvent is published after an address is written to flash.
type MACWrittenEvent struct {
	Interface string    `json:"interface"`
	MAC       string    `json:"mac"`
	At        time.Time `json:"at"`
}

// Type returns the event type identifier for MACWrittenEvent.
func (e MACWrittenEvent) Type() uint32 { return TypeMACWritten }

// LEDStateChangedEvent is published when led_ctrl drives the LEDs.
type LEDStateChangedEvent struct {
	Lines []string  `json:"lines"`
	On    bool      `json:"on"`
	At    time.Time `json:"at"`
}

// Type returns the event type identifier for LEDStateChangedEvent.
func (e LEDStateChangedEvent) Type() uint32 { return TypeLEDStateChanged }

// ClientConnectionEvent is published when a test client connects or leaves.
type ClientConnectionEvent struct {
	Remote    string    `json:"remote"`
	Connected bool      `json:"connected"`
	At        time.Time `json:"at"`
}

// Type returns the event type identifier for ClientConnectionEvent.
func (e ClientConnectionEvent) Type() uint32 { return TypeClientConnection }

// TestPassedEvent is published when the test-pass flag is persisted.
type TestPassedEvent struct {
	At time.Time `json:"at"`
}

// Type returns the event type identifier for TestPassedEvent.
func (e TestPassedEvent) Type() uint32 { return TypeTestPassed }

// RebootRequestedEvent is published before the board is rebooted.
type RebootRequestedEvent struct {
	Delay time.Duration `json:"delay"`
	At    time.Time     `json:"at"`
}

// Type returns the event type identifier for RebootRequestedEvent.
func (e RebootRequestedEvent) Type() uint32 { return TypeRebootRequested }
