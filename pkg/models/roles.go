package models

import "strings"

// Raw role spellings accepted at signup. "worker" is a legacy alias for
// "employee" kept for older mobile clients; NormalizeRole folds it away so the
// rest of the system only ever sees the canonical set.
const (
	RoleEmployee    = "employee"
	RoleWorker      = "worker"
	RoleSupervisor  = "supervisor"
	RoleAdmin       = "admin"
	RoleDGMSOfficer = "dgms_officer"
)

// NormalizeRole maps a raw role string to its canonical form. Unknown roles
// pass through lowercased; callers that need a known role must check with
// ValidRole first.
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == RoleWorker {
		return RoleEmployee
	}
	return r
}

// ValidRole reports whether role (after normalization) is a known role.
func ValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleEmployee, RoleSupervisor, RoleAdmin, RoleDGMSOfficer:
		return true
	}
	return false
}

// IsEmployee reports whether role normalizes to employee. Only employees
// accrue compliance snapshots.
func IsEmployee(role string) bool {
	return NormalizeRole(role) == RoleEmployee
}

// IsSupervisory reports whether role grants access to aggregated dashboards
// and alert acknowledgement.
func IsSupervisory(role string) bool {
	switch NormalizeRole(role) {
	case RoleSupervisor, RoleAdmin, RoleDGMSOfficer:
		return true
	}
	return false
}
