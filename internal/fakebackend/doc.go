// Package fakebackend is an in-memory implementation of the account backend
// API. It backs the end-to-end tests and the local development server.
//
// Only one PIN is active at a time and it expires after DefaultPinTTL. Emails
// go to a Mailer: an Outbox in tests, Resend when an API key is configured.
package fakebackend
