// Package api is the JSON-over-HTTP client for the congregation backend.
//
// Every call carries an X-Request-ID header, honours its context, and waits on
// a shared token bucket before leaving the process. Non-2xx answers come back
// as *StatusError; the caller decides what each status means for its
// operation.
package api
