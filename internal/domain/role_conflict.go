package domain

// ConflictSeverity ranks how harmful a role conflict is.
type ConflictSeverity string

const (
	ConflictSeverityLow      ConflictSeverity = "LOW"
	ConflictSeverityMedium   ConflictSeverity = "MEDIUM"
	ConflictSeverityHigh     ConflictSeverity = "HIGH"
	ConflictSeverityCritical ConflictSeverity = "CRITICAL"
)

// RoleMapping pairs a chat platform role with the rank it represents.
type RoleMapping struct {
	RoleID   string
	RoleName string
	Staff    StaffRole
}

// Level returns the mapped rank's level.
func (m RoleMapping) Level() int {
	return m.Staff.Level()
}

// RoleConflict describes a member holding more than one rank role at once.
type RoleConflict struct {
	GuildID     string
	UserID      string
	Conflicting []RoleMapping
	Highest     RoleMapping
	Severity    ConflictSeverity
}

// ToRemove returns every conflicting mapping except the highest.
func (c RoleConflict) ToRemove() []RoleMapping {
	out := make([]RoleMapping, 0, len(c.Conflicting))
	for _, m := range c.Conflicting {
		if m.RoleID != c.Highest.RoleID {
			out = append(out, m)
		}
	}
	return out
}
