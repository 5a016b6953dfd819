// Package permission is the static RBAC evaluator: typed roles, a typed
// permission enum, and a fixed role → permission matrix defined at process
// start.
//
// Authorization is a two-part AND: the role must carry the permission AND
// the account status must be approved. The two failures are distinct so
// callers can return the correct rejection (forbidden vs. not approved).
//
// # What this package must NOT do
//
//   - Hold runtime state or consult any store.
//   - Accept string-keyed permission lookups.
package permission
