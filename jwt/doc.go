// Package jwt signs and verifies persisted session records so a session file
// copied or edited outside the client is rejected on load.
package jwt
