package permission

// Role is the typed role enum used across sessionguard. Roles are fixed at
// compile time; unknown roles never pass any check.
type Role uint8

const (
	// RoleUnknown is the zero value and carries no permissions.
	RoleUnknown Role = iota
	// RoleCashier operates the point of sale only.
	RoleCashier
	// RoleStaff manages inventory and runs the point of sale.
	RoleStaff
	// RoleManager additionally reads reports and adjusts stock.
	RoleManager
	// RoleAdmin supersedes all role gates. Status gates still apply.
	RoleAdmin
)

// String returns the canonical lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleCashier:
		return "cashier"
	case RoleStaff:
		return "staff"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a stored role name back to its enum value.
// Unrecognized names map to [RoleUnknown].
func ParseRole(name string) Role {
	switch name {
	case "cashier":
		return RoleCashier
	case "staff":
		return RoleStaff
	case "manager":
		return RoleManager
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

// AccountStatus represents the lifecycle state of an account.
type AccountStatus uint8

const (
	// StatusPending is a new account awaiting email verification.
	StatusPending AccountStatus = iota
	// StatusVerified has a confirmed email but awaits admin approval.
	StatusVerified
	// StatusApproved is eligible for session issuance and access.
	StatusApproved
	// StatusRejected was declined by an admin. Terminal for session
	// issuance until an admin moves the account back to approved.
	StatusRejected
	// StatusSuspended was suspended by an admin. Terminal for session
	// issuance until an admin moves the account back to approved.
	StatusSuspended
)

// String returns the canonical lowercase status name.
func (s AccountStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusSuspended:
		return "suspended"
	default:
		return "invalid"
	}
}

// Permission enumerates every guarded capability. New permissions are added
// here and to the matrix below; string-keyed lookups are deliberately absent
// so an unknown permission is a compile error, not a silent deny.
type Permission uint8

const (
	// PermPOSOperate runs point-of-sale checkout flows.
	PermPOSOperate Permission = iota
	// PermInventoryRead views product and stock records.
	PermInventoryRead
	// PermInventoryWrite creates and adjusts product and stock records.
	PermInventoryWrite
	// PermReportsView reads sales and stock reports.
	PermReportsView
	// PermUserManagement administers accounts, roles, and approvals.
	PermUserManagement
	// PermSettingsManage edits store-wide settings.
	PermSettingsManage

	permCount
)

// matrix is the fixed role → permission set. Built once at init, read-only
// afterward. Admin is intentionally absent: HasPermission short-circuits it.
var matrix [RoleAdmin + 1][permCount]bool

func init() {
	grant := func(r Role, perms ...Permission) {
		for _, p := range perms {
			matrix[r][p] = true
		}
	}

	grant(RoleCashier, PermPOSOperate)
	grant(RoleStaff, PermPOSOperate, PermInventoryRead, PermInventoryWrite)
	grant(RoleManager, PermPOSOperate, PermInventoryRead, PermInventoryWrite,
		PermReportsView)
}

// HasPermission reports whether role carries perm. Admin passes every
// permission gate; account-status gates are checked separately via
// [ApprovedForAccess] and are never superseded.
func HasPermission(role Role, perm Permission) bool {
	if perm >= permCount {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	if role > RoleAdmin {
		return false
	}
	return matrix[role][perm]
}

// HasRole reports whether role is one of allowed. Admin passes any
// non-empty allow list.
func HasRole(role Role, allowed ...Role) bool {
	if role == RoleAdmin && len(allowed) > 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// ApprovedForAccess reports whether status permits authenticated access.
// Only approved accounts qualify; an admin with any other status is still
// blocked.
func ApprovedForAccess(status AccountStatus) bool {
	return status == StatusApproved
}

// POSEligible reports whether the role/status pair may operate the point
// of sale. Requires an approved account and the POS permission.
func POSEligible(role Role, status AccountStatus) bool {
	return ApprovedForAccess(status) && HasPermission(role, PermPOSOperate)
}

// CanTransition reports whether an account may move from one status to
// another. Session issuance is gated by [ApprovedForAccess]; this only
// constrains administrative state changes:
//
//	pending   → verified            (email verified)
//	verified  → approved | rejected (admin decision)
//	approved  → suspended           (admin suspends)
//	rejected  → approved            (admin reinstates)
//	suspended → approved            (admin reinstates)
func CanTransition(from, to AccountStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusVerified
	case StatusVerified:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusSuspended
	case StatusRejected, StatusSuspended:
		return to == StatusApproved
	default:
		return false
	}
}
