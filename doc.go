// Package cuenta is the client side of the congregation account backend.
//
// A [Client] logs a member in, keeps the returned user record in a session
// [session.Store], and drives the sensitive account changes through the
// verified-mutation flow exposed by [Client.Edit]: every change of username,
// email, phone or password, and the account deactivation, requires a one-time
// PIN emailed to the account first. [Client.Recovery] runs the same PIN check
// for a logged-out user who forgot the username or the password.
//
// # Architecture boundaries
//
// cuenta is the public surface. It exposes [Client], [Builder], [Config],
// sentinel errors and value types. The state machines live in
// internal/flows, the HTTP transport in internal/api, and the debounced
// username check in internal/availability; none of them import this package.
//
// # Concurrency
//
// Client, EditFlow and RecoveryFlow are safe for concurrent use. Backend
// calls run without any flow lock held; a response that arrives after the
// flow was cancelled or restarted is discarded and reported as [ErrStale].
// At most one request per flow is in flight; a second one fails with
// [ErrBusy].
//
// # Errors
//
// Every error can be matched with errors.Is against the sentinels in this
// package, and [UserMessage] turns it into the Spanish text shown to members.
package cuenta
