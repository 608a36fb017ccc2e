// Package permission maps named permissions to bits of a 64-bit mask and
// composes them into roles.
//
// The account client ships two roles: "publicador" (every member) and
// "admin_local" (congregation administrators, who may also publish security
// notices). [Default] builds the frozen role set used by the client.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import cuenta, jwt, or session.
package permission
