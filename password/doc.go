// Package password implements credential hashing and verification with
// argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so
// callers can re-hash on the next successful verification.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Credential storage and
// password policy live with the identity provider.
package password
