package led

import "log/slog"

// noop implements Controller as a no-op for systems without LED support
type noop struct {
	logger *slog.Logger
}

// newNoop creates a new no-op LED controller
func newNoop(logger *slog.Logger) *noop {
	return &noop{
		logger: logger,
	}
}

// Set logs the request but performs no actual LED control
func (n *noop) Set(line Line, level Level) error {
	n.logger.Debug("LED control not available (no-op)",
		"led", line.Name,
		"level", int(level))
	return nil
}

func (n *noop) Close() error {
	return nil
}
