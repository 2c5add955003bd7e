// Package command dispatches decoded test port commands to the flash store,
// the LED controller and the OS collaborator, and writes the fixed replies.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/factoryd/internal/events"
	"github.com/smazurov/factoryd/internal/flash"
	"github.com/smazurov/factoryd/internal/led"
	"github.com/smazurov/factoryd/internal/mac"
	"github.com/smazurov/factoryd/internal/protocol"
)

// DefaultRebootDelay is how long reboot waits after acknowledging.
const DefaultRebootDelay = 3 * time.Second

var (
	errBadArgument = errors.New("invalid argument")
	errNotHandled  = errors.New("unknown command or wrong argument count")
)

// MACStore reads and writes MAC addresses in the flash partition.
type MACStore interface {
	Read(iface flash.Interface) (mac.Addr, error)
	Write(iface flash.Interface, addr mac.Addr) error
}

// OSControl performs the host side effects.
type OSControl interface {
	ApplyNetworkConfig(ctx context.Context) error
	PersistTestPass(ctx context.Context) error
	Reboot(ctx context.Context) error
}

// Options configures a Dispatcher.
type Options struct {
	Store       MACStore
	OpenLED     led.Opener
	OS          OSControl
	EventBus    *events.Bus
	Logger      *slog.Logger
	RebootDelay time.Duration
}

// Dispatcher runs one command per call. It keeps no state between calls.
// MAC updates and reads through it are serialized.
type Dispatcher struct {
	store       MACStore
	openLED     led.Opener
	os          OSControl
	eventBus    *events.Bus
	logger      *slog.Logger
	rebootDelay time.Duration
	handlers    map[string]handler

	// macMu keeps readers from seeing a partly written address set.
	macMu sync.RWMutex
}

type handler struct {
	tokens int
	run    func(ctx context.Context, cmd protocol.Command, w io.Writer) error
}

// NewDispatcher creates a dispatcher from opts.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	eventBus := opts.EventBus
	if eventBus == nil {
		eventBus = events.New()
	}
	delay := opts.RebootDelay
	if delay < 0 {
		delay = 0
	}
	d := &Dispatcher{
		store:       opts.Store,
		openLED:     opts.OpenLED,
		os:          opts.OS,
		eventBus:    eventBus,
		logger:      logger,
		rebootDelay: delay,
	}
	d.handlers = map[string]handler{
		protocol.CmdSetWiFiMAC: {2, d.setWiFiMAC},
		protocol.CmdTestPass:   {1, d.testPass},
		protocol.CmdSetEthxMAC: {1, d.setEthxMAC},
		protocol.CmdGetMAC:     {1, d.getMAC},
		protocol.CmdReboot:     {1, d.reboot},
		protocol.CmdLEDCtrl:    {2, d.ledCtrl},
	}
	return d
}

// Handle runs cmd and writes its reply to w. Unknown commands and commands
// with the wrong number of tokens write nothing. The returned error is only
// non-nil when the reply could not be written.
func (d *Dispatcher) Handle(ctx context.Context, cmd protocol.Command, w io.Writer) error {
	start := time.Now()

	h, ok := d.handlers[cmd.Name()]
	if !ok || len(cmd.Tokens) != h.tokens {
		d.logger.Debug("Ignoring command", "command", cmd.String(), "tokens", len(cmd.Tokens))
		d.publishHandled(cmd, events.ResultIgnored, errNotHandled, start)
		return nil
	}

	err := h.run(ctx, cmd, w)

	var writeErr *replyError
	switch {
	case errors.As(err, &writeErr):
		d.publishHandled(cmd, events.ResultFail, err, start)
		return writeErr.err
	case err != nil:
		d.logger.Warn("Command failed", "command", cmd.Name(), "error", err)
		d.publishHandled(cmd, events.ResultFail, err, start)
		return d.reply(w, protocol.ReplyFail)
	default:
		d.logger.Info("Command handled", "command", cmd.Name(), "duration", time.Since(start))
		d.publishHandled(cmd, events.ResultOK, nil, start)
		return nil
	}
}

// replyError marks a failure to write to the client, which ends the
// connection rather than producing a fail reply.
type replyError struct {
	err error
}

func (e *replyError) Error() string { return "write reply: " + e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func (d *Dispatcher) reply(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return &replyError{err: err}
	}
	return nil
}

func (d *Dispatcher) setWiFiMAC(_ context.Context, cmd protocol.Command, w io.Writer) error {
	addr, err := mac.Parse(cmd.Tokens[1])
	if err != nil {
		return err
	}
	if err := d.SetWiFiMAC(addr); err != nil {
		return err
	}
	return d.reply(w, protocol.ReplyOK)
}

func (d *Dispatcher) setEthxMAC(_ context.Context, _ protocol.Command, w io.Writer) error {
	if err := d.DeriveEthMACs(); err != nil {
		return err
	}
	return d.reply(w, protocol.ReplyOK)
}

// DeriveEthMACs rewrites eth0 and eth1 from the address stored at ath0.
func (d *Dispatcher) DeriveEthMACs() error {
	d.macMu.Lock()
	defer d.macMu.Unlock()

	base, err := d.store.Read(flash.Ath0)
	if err != nil {
		return fmt.Errorf("read %s: %w", flash.Ath0, err)
	}
	if err := d.writeMAC(flash.Eth0, base.Next()); err != nil {
		return err
	}
	return d.writeMAC(flash.Eth1, base.Next().Next())
}

// SetWiFiMAC stores base at ath0 and the next two addresses at eth0 and
// eth1, stopping at the first failure.
func (d *Dispatcher) SetWiFiMAC(base mac.Addr) error {
	d.macMu.Lock()
	defer d.macMu.Unlock()

	if err := d.writeMAC(flash.Ath0, base); err != nil {
		return err
	}
	if err := d.writeMAC(flash.Eth0, base.Next()); err != nil {
		return err
	}
	return d.writeMAC(flash.Eth1, base.Next().Next())
}

func (d *Dispatcher) writeMAC(iface flash.Interface, addr mac.Addr) error {
	if err := d.store.Write(iface, addr); err != nil {
		return fmt.Errorf("write %s: %w", iface, err)
	}
	d.eventBus.Publish(events.MACWrittenEvent{
		Interface: string(iface),
		MAC:       addr.String(),
		At:        time.Now(),
	})
	return nil
}

func (d *Dispatcher) getMAC(_ context.Context, _ protocol.Command, w io.Writer) error {
	addrs, err := d.ReadMACs()
	if err != nil {
		return err
	}
	return d.reply(w, protocol.FormatMACs(addrs.WiFi, addrs.Eth0, addrs.Eth1))
}

// MACs is the address set reported by get_mac.
type MACs struct {
	WiFi mac.Addr
	Eth0 mac.Addr
	Eth1 mac.Addr
}

// ReadMACs reads the ath0, eth0 and eth1 slots.
func (d *Dispatcher) ReadMACs() (MACs, error) {
	d.macMu.RLock()
	defer d.macMu.RUnlock()

	var out MACs
	for _, slot := range []struct {
		iface flash.Interface
		dst   *mac.Addr
	}{
		{flash.Ath0, &out.WiFi},
		{flash.Eth0, &out.Eth0},
		{flash.Eth1, &out.Eth1},
	} {
		addr, err := d.store.Read(slot.iface)
		if err != nil {
			return MACs{}, fmt.Errorf("read %s: %w", slot.iface, err)
		}
		*slot.dst = addr
	}
	return out, nil
}

// testPass always acknowledges; a failure to persist the flag is only logged.
func (d *Dispatcher) testPass(ctx context.Context, _ protocol.Command, w io.Writer) error {
	if err := d.os.PersistTestPass(ctx); err != nil {
		d.logger.Error("Failed to persist test pass flag", "error", err)
	} else {
		d.eventBus.Publish(events.TestPassedEvent{At: time.Now()})
	}
	return d.reply(w, protocol.ReplyOK)
}

// reboot acknowledges first, then waits so the reply reaches the client.
func (d *Dispatcher) reboot(ctx context.Context, _ protocol.Command, w io.Writer) error {
	if err := d.reply(w, protocol.ReplyOK); err != nil {
		return err
	}

	d.eventBus.Publish(events.RebootRequestedEvent{Delay: d.rebootDelay, At: time.Now()})
	d.logger.Warn("Rebooting", "delay", d.rebootDelay)

	timer := time.NewTimer(d.rebootDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		d.logger.Info("Reboot cancelled", "error", ctx.Err())
		return nil
	case <-timer.C:
	}

	if err := d.os.Reboot(ctx); err != nil {
		d.logger.Error("Reboot failed", "error", err)
	}
	return nil
}

func (d *Dispatcher) ledCtrl(_ context.Context, cmd protocol.Command, w io.Writer) error {
	var level led.Level
	switch cmd.Tokens[1] {
	case "1":
		level = led.On
	case "0":
		level = led.Off
	default:
		return fmt.Errorf("led_ctrl %q: %w", cmd.Tokens[1], errBadArgument)
	}
	if err := d.SetLEDs(level); err != nil {
		return err
	}
	return d.reply(w, protocol.ReplyOK)
}

// SetLEDs drives every status LED to level through a freshly opened
// controller.
func (d *Dispatcher) SetLEDs(level led.Level) error {
	ctrl, err := d.openLED()
	if err != nil {
		return fmt.Errorf("open LED controller: %w", err)
	}
	defer ctrl.Close()

	if err := led.SetAll(ctrl, level); err != nil {
		return err
	}

	names := make([]string, 0, len(led.Lines()))
	for _, l := range led.Lines() {
		names = append(names, l.Name)
	}
	d.eventBus.Publish(events.LEDStateChangedEvent{
		Lines: names,
		On:    level == led.On,
		At:    time.Now(),
	})
	return nil
}

func (d *Dispatcher) publishHandled(cmd protocol.Command, result string, err error, start time.Time) {
	ev := events.CommandHandledEvent{
		Command:  cmd.Name(),
		Args:     cmd.Args(),
		Result:   result,
		Duration: time.Since(start),
		At:       time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.eventBus.Publish(ev)
}
