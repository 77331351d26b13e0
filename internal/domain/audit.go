package domain

import "time"

// AuditAction identifies what an audit entry records.
type AuditAction string

const (
	AuditStaffHired          AuditAction = "staff_hired"
	AuditStaffPromoted       AuditAction = "staff_promoted"
	AuditStaffDemoted        AuditAction = "staff_demoted"
	AuditStaffFired          AuditAction = "staff_fired"
	AuditStaffStatusChanged  AuditAction = "staff_status_changed"
	AuditRoleSynced          AuditAction = "role_synced"
	AuditRoleConflictFixed   AuditAction = "role_conflict_resolved"
	AuditCaseOpened          AuditAction = "case_opened"
	AuditCaseAssigned        AuditAction = "case_assigned"
	AuditCaseClosed          AuditAction = "case_closed"
	AuditJobPosted           AuditAction = "job_posted"
	AuditJobClosed           AuditAction = "job_closed"
	AuditApplicationCreated  AuditAction = "application_submitted"
	AuditApplicationReviewed AuditAction = "application_reviewed"
	AuditCommandExecuted     AuditAction = "command_executed"
)

// AuditEntry is an append-only record of an action taken in a guild.
type AuditEntry struct {
	ID        string
	GuildID   string
	Action    AuditAction
	ActorID   string
	TargetID  string
	Details   map[string]any
	CreatedAt time.Time
}
