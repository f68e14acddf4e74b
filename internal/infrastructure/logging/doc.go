// Package logging provides structured logging for the BluOS bridge.
//
// It wraps log/slog so every entry carries the service name and build
// version. JSON output is the default; "text" is meant for a terminal.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT credentials.
package logging
