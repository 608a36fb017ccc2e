// Package limiters provides the PIN rate limiter built on top of the
// internal/rate fixed-window counter.
//
// [PinLimiter] keeps two budgets per identity: PIN emails requested and PIN
// verification attempts. Identities are lower-cased and trimmed before they
// become part of a key. A nil *PinLimiter allows everything.
//
// # What this package must NOT do
//
//   - Import cuenta or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting: the flow controllers decide what
//     a limited request means for the user.
package limiters
