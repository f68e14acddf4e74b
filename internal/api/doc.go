// Package api implements the HTTP REST API and WebSocket server for the
// BluOS bridge.
//
// This package provides:
//   - REST endpoints for the managed players, their poll records and groups
//   - State reads and command writes against the adapter's key space
//   - WebSocket hub relaying state and object changes in real time
//   - Prometheus exposition at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server is a thin shell over the state store and the BluOS adapter.
// A PUT to /api/v1/states/{id} writes an unacknowledged value, exactly as
// any other store client would; the adapter's subscription turns it into a
// device command and acknowledges it once the player accepted it.
//
// # Graceful Degradation
//
// The server runs without MQTT or a database handle. Health reports 503
// while the adapter's connection indicator is false.
package api
