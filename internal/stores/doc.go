// Package stores provides the Redis-backed PIN challenge store used by the
// development backend when it runs against Redis.
//
// # Design
//
// The active challenge is a versioned, binary-encoded record in one Redis
// key with a TTL. Consume uses WATCH/MULTI with retry on contention, deletes
// the record on a match and compares hashes in constant time.
//
// # What this package must NOT do
//
//   - Generate PINs or send mail.
//   - Store or log a PIN in clear text.
package stores
