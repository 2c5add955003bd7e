// Package server runs the factory test port: a TCP listener that serves one
// client at a time, framing CRLF lines into commands for a Handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smazurov/factoryd/internal/events"
	"github.com/smazurov/factoryd/internal/protocol"
)

// DefaultAddr is the factory test port.
const DefaultAddr = ":4415"

// Backlog is the listen queue depth. A second tester waits in the queue
// until the current one disconnects.
const Backlog = 1

// Handler runs one decoded command and writes its reply. An error means the
// reply could not be written.
type Handler interface {
	Handle(ctx context.Context, cmd protocol.Command, w io.Writer) error
}

// Options configures a Server.
type Options struct {
	Addr        string
	IdleTimeout time.Duration // 0 waits forever
	Handler     Handler
	EventBus    *events.Bus
	Logger      *slog.Logger
}

// Server accepts and serves connections sequentially.
type Server struct {
	addr        string
	idleTimeout time.Duration
	handler     Handler
	eventBus    *events.Bus
	logger      *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server from opts.
func New(opts Options) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	eventBus := opts.EventBus
	if eventBus == nil {
		eventBus = events.New()
	}
	return &Server{
		addr:        addr,
		idleTimeout: opts.IdleTimeout,
		handler:     opts.Handler,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := listen(s.addr, Backlog)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("Test port listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until ctx is cancelled, serving each to completion
// before accepting the next. It returns nil after cancellation and an error
// when accepting or reading from a client fails.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Test port closed")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if err := s.serveConn(ctx, conn); err != nil {
			return err
		}
	}
}

// serveConn reads lines until the client disconnects.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	start := time.Now()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	logger.Info("Test client connected")
	s.eventBus.Publish(events.ClientConnectionEvent{Remote: remote, Connected: true, At: start})
	defer func() {
		logger.Info("Test client disconnected", "duration", time.Since(start))
		s.eventBus.Publish(events.ClientConnectionEvent{Remote: remote, Connected: false, At: time.Now()})
	}()

	scanner := protocol.NewScanner(conn)
	for {
		if s.idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		if !scanner.Scan() {
			return s.readError(ctx, scanner.Err(), remote, logger)
		}

		cmd, err := protocol.Decode(scanner.Bytes())
		if err != nil {
			logger.Debug("Dropping malformed line", "error", err)
			continue
		}
		logger.Debug("Command received", "command", cmd.String())

		if err := s.handler.Handle(ctx, cmd, conn); err != nil {
			// The client is gone; wait for the next one.
			logger.Warn("Failed to write reply", "command", cmd.Name(), "error", err)
			return nil
		}
	}
}

// readError classifies the end of a connection. EOF, cancellation and idle
// timeouts end the connection; any other read error is fatal.
func (s *Server) readError(ctx context.Context, err error, remote string, logger *slog.Logger) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Info("Test client idle, closing", "timeout", s.idleTimeout)
		return nil
	}
	logger.Error("Read from test client failed", "error", err)
	return fmt.Errorf("read from %s: %w", remote, err)
}
