// Package logging provides structured logging with per-module log levels.
//
// Output is routed automatically:
//   - the systemd journal when journald is reachable (identifier "factoryd")
//   - stdout when a terminal, pipe or file is attached
//   - an in-memory ring buffer of the last 1000 entries, served by the admin API
//
// Initialize once at startup, then get a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"flash": "debug"},
//	})
//	logger := logging.GetLogger("flash")
//	logger.Info("MAC written to flash", "interface", "ath0")
//
// Levels can be changed at runtime with Reconfigure; the config watcher
// calls it when the [logging] section of the config file changes.
//
// Viewing logs on the board:
//
//	journalctl -t factoryd -f
//	journalctl -t factoryd MODULE=server
package logging
