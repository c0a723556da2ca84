// Package api implements the node's remote console: a small HTTP API and
// WebSocket event stream for operators on the local network.
//
// This package provides:
//   - Link status, reconnect, disconnect and network scan endpoints
//   - Settings read and partial update (passwords are never returned)
//   - Factory reset of the settings store
//   - WebSocket hub broadcasting link, broker and settings events
//   - Middleware stack (request ID, logging, recovery, basic auth)
//
// # Lifecycle
//
// The console only listens while the link is up. Supervisor listeners call
// SetLinkUp, and Manage starts or stops the listener on its own goroutine
// so the poll loop never waits for HTTP shutdown.
//
// # Concurrency
//
// Handlers never touch the supervisor directly: every call is marshalled
// onto the poll goroutine through Executor.Do.
//
// # Security
//
// Every route except /api/v1/health requires HTTP basic auth with the
// console password from the settings store.
package api
