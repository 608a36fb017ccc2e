// Package rate provides the Redis fixed-window counter that the PIN limiters
// are built on.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. A key is over budget once its count exceeds
// the max passed to [Window.Hit]; the window resets when the key expires.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the cuenta module.
package rate
