// Package auth holds the role model, password hashing, bearer sessions and
// the optional LDAP bind used at login.
package auth

import (
	"strings"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/types"
)

type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
)

// Roles are totally ordered; a role holds every permission whose minimum
// rank it meets.
var roleRank = map[types.Role]int{
	types.RoleViewer:     1,
	types.RoleMaintainer: 2,
	types.RoleAdmin:      3,
}

var permissionRank = map[Permission]int{
	PermRead:   1,
	PermWrite:  2,
	PermDelete: 3,
	PermAdmin:  3,
}

var allPermissions = []Permission{PermRead, PermWrite, PermDelete, PermAdmin}

// ParseRole accepts role names case-insensitively. EDITOR is the legacy name
// of MAINTAINER.
func ParseRole(s string) (types.Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return types.RoleAdmin, true
	case "MAINTAINER", "EDITOR":
		return types.RoleMaintainer, true
	case "VIEWER":
		return types.RoleViewer, true
	default:
		return "", false
	}
}

func Rank(role types.Role) int {
	return roleRank[role]
}

func HasPermission(role types.Role, perm Permission) bool {
	rank, ok := roleRank[role]
	if !ok {
		return false
	}
	need, ok := permissionRank[perm]
	return ok && rank >= need
}

func PermissionsFor(role types.Role) []Permission {
	var perms []Permission
	for _, p := range allPermissions {
		if HasPermission(role, p) {
			perms = append(perms, p)
		}
	}
	return perms
}

// Check fails with an authentication error for an unknown role and with an
// authorization error when any required permission is missing.
func Check(role string, required ...Permission) error {
	r, ok := ParseRole(role)
	if !ok {
		return apperr.Authentication("unrecognized role %q", role)
	}
	for _, p := range required {
		if !HasPermission(r, p) {
			return apperr.Authorization("role %s lacks %s permission", r, p)
		}
	}
	return nil
}
