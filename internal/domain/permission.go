package domain

// Permission is a capability derived from a staff rank.
type Permission string

const (
	PermissionAdmin        Permission = "admin"
	PermissionSeniorStaff  Permission = "senior-staff"
	PermissionLawyer       Permission = "lawyer"
	PermissionCaseHandling Permission = "case-handling"
	PermissionLeadAttorney Permission = "lead-attorney"
)

// PermissionsForRole returns the capabilities granted by a rank.
func PermissionsForRole(role StaffRole) []Permission {
	level := role.Level()
	var perms []Permission
	if level >= 2 {
		perms = append(perms, PermissionLawyer, PermissionCaseHandling)
	}
	if level >= 3 {
		perms = append(perms, PermissionLeadAttorney)
	}
	if level >= 5 {
		perms = append(perms, PermissionSeniorStaff)
	}
	if level >= 6 {
		perms = append(perms, PermissionAdmin)
	}
	return perms
}

// RoleHasPermission reports whether role grants perm.
func RoleHasPermission(role StaffRole, perm Permission) bool {
	for _, p := range PermissionsForRole(role) {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionContext describes the caller of an operation within one guild.
type PermissionContext struct {
	GuildID       string
	UserID        string
	MemberRoleIDs []string
	IsGuildOwner  bool
	IsAdmin       bool
}

// CanBypass reports whether the caller may override a bypassable limit.
func (p PermissionContext) CanBypass() bool {
	return p.IsGuildOwner || p.IsAdmin
}
