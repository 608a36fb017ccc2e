// Package session keeps the authenticated user record for the lifetime of a
// login and offers a single partial-update write path ([Store.Replace]).
//
// # Stores
//
// [MemoryStore] is the default for embedded use and tests, [FileStore] persists
// the record between CLI invocations, and [RedisStore] shares it between
// processes. All of them encode through a [Codec]; the default codec writes a
// version byte followed by JSON, and [SignedCodec] wraps the same bytes in a
// signed token so a tampered file is rejected on load.
//
// # What this package must NOT do
//
//   - Import cuenta, jwt, or internal packages (no upward imports).
//   - Talk to the backend. Records are produced by login and patched by the
//     edit flow's success handler.
package session
