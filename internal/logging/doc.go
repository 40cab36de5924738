// Package logging provides structured logging with per-module log level
// configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - systemd journal when available (Linux systems with journald)
//   - stdout when a terminal, pipe, or file is connected
//   - an in-memory ring buffer serving the /api/logs endpoint
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"stream": "debug",
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Opened device", "path", "/dev/video0")
//
// Module-specific levels override the global level for that module only.
// When running under systemd:
//
//	journalctl -t camnode -f
//	journalctl -t camnode MODULE=recorder
package logging
