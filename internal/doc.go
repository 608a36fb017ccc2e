// Package internal holds small helpers private to the module: PIN
// generation and the ids that tie audit events together.
//
// # Sub-packages
//
//   - api: HTTP client for every backend endpoint
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - availability: debounced, restartable username lookup
//   - fakebackend: in-memory backend used by tests and the dev server
//   - flows: edit and recovery state machines
//   - limiters: Redis-backed PIN request and verify limits
//   - rate: fixed-window Redis counter under the limiters
//   - security: posture report behind Client.SecurityReport
//   - stores: Redis PIN challenge store for the dev backend
package internal
