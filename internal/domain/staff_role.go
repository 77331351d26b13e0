package domain

import "strings"

// StaffRole enumerates the ranks of the firm hierarchy, lowest to highest.
type StaffRole string

const (
	StaffRoleParalegal       StaffRole = "Paralegal"
	StaffRoleJuniorAssociate StaffRole = "Junior Associate"
	StaffRoleSeniorAssociate StaffRole = "Senior Associate"
	StaffRoleJuniorPartner   StaffRole = "Junior Partner"
	StaffRoleSeniorPartner   StaffRole = "Senior Partner"
	StaffRoleManagingPartner StaffRole = "Managing Partner"
)

const (
	// MinRoleLevel is the level of the lowest rank.
	MinRoleLevel = 1
	// MaxRoleLevel is the level of the highest rank.
	MaxRoleLevel = 6

	// ManagementLevel is the first level of the management tier.
	ManagementLevel = 4
	// promotionAuthorityLevel is the minimum level allowed to promote or demote anyone.
	promotionAuthorityLevel = 5
)

type roleDefinition struct {
	role     StaffRole
	level    int
	maxCount int
}

// hierarchy is ordered by level; index i holds level i+1.
var hierarchy = [...]roleDefinition{
	{role: StaffRoleParalegal, level: 1, maxCount: 10},
	{role: StaffRoleJuniorAssociate, level: 2, maxCount: 10},
	{role: StaffRoleSeniorAssociate, level: 3, maxCount: 10},
	{role: StaffRoleJuniorPartner, level: 4, maxCount: 5},
	{role: StaffRoleSeniorPartner, level: 5, maxCount: 3},
	{role: StaffRoleManagingPartner, level: 6, maxCount: 1},
}

var roleIndex = func() map[StaffRole]int {
	idx := make(map[StaffRole]int, len(hierarchy))
	for i, def := range hierarchy {
		idx[def.role] = i
	}
	return idx
}()

// AllStaffRoles returns every rank ordered from lowest to highest.
func AllStaffRoles() []StaffRole {
	roles := make([]StaffRole, 0, len(hierarchy))
	for _, def := range hierarchy {
		roles = append(roles, def.role)
	}
	return roles
}

// IsValidRole reports whether text is exactly one of the canonical rank labels.
func IsValidRole(text string) bool {
	_, ok := roleIndex[StaffRole(text)]
	return ok
}

// ParseStaffRole matches text against the rank labels ignoring case and
// surrounding whitespace.
func ParseStaffRole(text string) (StaffRole, bool) {
	text = strings.TrimSpace(text)
	for _, def := range hierarchy {
		if strings.EqualFold(string(def.role), text) {
			return def.role, true
		}
	}
	return "", false
}

// RoleForLevel returns the rank at the given level.
func RoleForLevel(level int) (StaffRole, bool) {
	if level < MinRoleLevel || level > MaxRoleLevel {
		return "", false
	}
	return hierarchy[level-1].role, true
}

// Level returns the rank's seniority, or 0 for an unknown role.
func (r StaffRole) Level() int {
	i, ok := roleIndex[r]
	if !ok {
		return 0
	}
	return hierarchy[i].level
}

// MaxCount returns the occupancy ceiling for the rank within one guild.
func (r StaffRole) MaxCount() int {
	i, ok := roleIndex[r]
	if !ok {
		return 0
	}
	return hierarchy[i].maxCount
}

// IsValid reports whether r is a canonical rank.
func (r StaffRole) IsValid() bool {
	_, ok := roleIndex[r]
	return ok
}

// IsManagement reports whether r belongs to the partner tier.
func (r StaffRole) IsManagement() bool {
	return r.Level() >= ManagementLevel
}

func (r StaffRole) String() string {
	return string(r)
}

// NextPromotion returns the rank one level above r.
func (r StaffRole) NextPromotion() (StaffRole, bool) {
	if !r.IsValid() {
		return "", false
	}
	return RoleForLevel(r.Level() + 1)
}

// PreviousDemotion returns the rank one level below r.
func (r StaffRole) PreviousDemotion() (StaffRole, bool) {
	if !r.IsValid() {
		return "", false
	}
	return RoleForLevel(r.Level() - 1)
}

// CanPromote reports whether actor may promote a member currently holding target.
// Only Senior and Managing Partners promote, and only members strictly below them.
func CanPromote(actor, target StaffRole) bool {
	return actor.Level() >= promotionAuthorityLevel && actor.Level() > target.Level()
}

// CanDemote applies the same authority rule as CanPromote.
func CanDemote(actor, target StaffRole) bool {
	return CanPromote(actor, target)
}
