// Package password hashes and verifies account passwords.
//
// New hashes use Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Checker] also accepts the bcrypt hashes and plaintext values found in
// accounts created by earlier releases, and reports them through
// [Checker.NeedsUpgrade] so they can be re-hashed after a successful login.
package password
