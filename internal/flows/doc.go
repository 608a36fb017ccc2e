// Package flows contains the stateful controllers behind cuenta.EditFlow and
// cuenta.RecoveryFlow.
//
// Each controller accepts a typed dependency struct of closures (backend
// calls, session writes, metrics, audit) and owns nothing else. The root
// package builds those deps from its API client and session store.
//
// # Architecture boundaries
//
// Controllers hold the flow state under a mutex and never hold it across a
// dependency call. Every call records the flow epoch it started in; when
// Start or Cancel moved the epoch meanwhile, the result is discarded and the
// Stale error is returned.
//
// # What this package must NOT do
//
//   - Import cuenta (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through the deps structs.
package flows
