// Package process provides subprocess lifecycle management for the
// ffmpeg helpers this service runs.
//
// Process wraps os/exec for a single subprocess:
//   - Graceful shutdown with SIGINT and configurable timeout
//   - Force kill with SIGKILL if graceful shutdown times out
//   - Output streaming with pluggable log parsing
//   - Optional raw stdin/stdout wiring for data-plane pipes
//   - Restart support for configuration changes
package process
