// Package identity bundles a reference in-memory IdentityProvider with
// argon2id credential hashes and the account status state machine.
//
// It exists for the example binary and for tests. Production deployments
// implement sessionguard.IdentityProvider over their own user store.
package identity
