package validation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// CascadeType names the kind of mutation assessed by ValidateCascadingUpdate.
type CascadeType string

const (
	CascadeStaffRoleChange  CascadeType = "staffRoleChange"
	CascadeStaffRemoval     CascadeType = "staffRemoval"
	CascadeCaseStatusChange CascadeType = "caseStatusChange"
)

// CascadeUpdate describes a proposed mutation. EntityID is a user id for staff
// cascades and a case id for case cascades. An empty NewRole on a role change
// means the next rank down.
type CascadeUpdate struct {
	Type      CascadeType
	EntityID  string
	NewRole   domain.StaffRole
	NewStatus domain.CaseStatus
}

// CrossEntityValidator checks invariants that span staff, cases, jobs and applications.
type CrossEntityValidator struct {
	staff        repository.StaffRepository
	cases        repository.CaseRepository
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	logger       *zap.Logger
}

// CrossEntityDependencies bundles repositories.
type CrossEntityDependencies struct {
	StaffRepo       repository.StaffRepository
	CaseRepo        repository.CaseRepository
	JobRepo         repository.JobRepository
	ApplicationRepo repository.ApplicationRepository
}

// NewCrossEntityValidator builds the validator.
func NewCrossEntityValidator(deps CrossEntityDependencies, logger *zap.Logger) *CrossEntityValidator {
	return &CrossEntityValidator{
		staff:        deps.StaffRepo,
		cases:        deps.CaseRepo,
		jobs:         deps.JobRepo,
		applications: deps.ApplicationRepo,
		logger:       logger,
	}
}

// ValidateAll runs every guild-wide check and merges the results.
func (v *CrossEntityValidator) ValidateAll(ctx context.Context, guildID string) Result {
	return Merge(
		v.ValidateStaffRoleConsistency(ctx, guildID),
		v.ValidateCaseIntegrity(ctx, guildID, ""),
		v.ValidateJobApplicationConsistency(ctx, guildID, ""),
		v.ValidateOrphanedEntities(ctx, guildID),
	)
}

// ValidateStaffRoleConsistency checks the shape of the active roster: gaps between
// occupied levels, duplicate Managing Partners and presence of management.
func (v *CrossEntityValidator) ValidateStaffRoleConsistency(ctx context.Context, guildID string) Result {
	active, err := v.activeStaff(ctx, guildID)
	if err != nil {
		v.logger.Error("staff role consistency check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("staff role consistency")
	}

	res := NewResult()
	res.SetMeta("active_staff", len(active))
	if len(active) == 0 {
		return res
	}

	occupied := map[int]int{}
	for i := range active {
		occupied[active[i].Role.Level()]++
	}

	levels := make([]int, 0, len(occupied))
	for level := range occupied {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for i := 1; i < len(levels); i++ {
		lower, upper := levels[i-1], levels[i]
		if upper-lower <= 1 {
			continue
		}
		var missing []domain.StaffRole
		for l := lower + 1; l < upper; l++ {
			role, _ := domain.RoleForLevel(l)
			missing = append(missing, role)
		}
		lowerRole, _ := domain.RoleForLevel(lower)
		upperRole, _ := domain.RoleForLevel(upper)
		res.AddWarning(CodeHierarchyGap,
			fmt.Sprintf("no staff between %s and %s", lowerRole, upperRole),
			map[string]any{"missing_roles": missing})
	}

	if mp := occupied[domain.StaffRoleManagingPartner.Level()]; mp > 1 {
		res.AddError(CodeDuplicateSingleton,
			fmt.Sprintf("%d active Managing Partners; only 1 is allowed", mp),
			map[string]any{"count": mp})
	}

	hasManagement := false
	for level := domain.ManagementLevel; level <= domain.MaxRoleLevel; level++ {
		if occupied[level] > 0 {
			hasManagement = true
			break
		}
	}
	if !hasManagement {
		res.AddError(CodeNoManagement, "no active staff hold a management role (Junior Partner or above)", nil)
	}
	return res
}

// ValidateCaseIntegrity checks that assigned lawyers and lead attorneys are active
// staff. An empty caseID checks every case in the guild.
func (v *CrossEntityValidator) ValidateCaseIntegrity(ctx context.Context, guildID, caseID string) Result {
	cases, err := v.loadCases(ctx, guildID, caseID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res := NewResult()
			res.AddError(CodeCaseNotFound, "case not found", map[string]any{"case_id": caseID})
			return res
		}
		v.logger.Error("case integrity check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("case integrity")
	}
	roster, err := v.rosterByUser(ctx, guildID)
	if err != nil {
		v.logger.Error("case integrity roster load failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("case integrity")
	}

	res := NewResult()
	res.SetMeta("cases_checked", len(cases))
	for i := range cases {
		c := &cases[i]
		for _, lawyerID := range c.AssignedLawyerIDs {
			if !roster[lawyerID].IsActive() {
				res.AddError(CodeInvalidLawyer,
					fmt.Sprintf("case %s: assigned lawyer %s is not active staff", c.CaseNumber, lawyerID),
					map[string]any{"case_id": c.ID, "user_id": lawyerID})
			}
		}
		if c.LeadAttorneyID == nil || *c.LeadAttorneyID == "" {
			continue
		}
		lead := roster[*c.LeadAttorneyID]
		switch {
		case !lead.IsActive():
			res.AddError(CodeInvalidLeadAttorney,
				fmt.Sprintf("case %s: lead attorney %s is not active staff", c.CaseNumber, *c.LeadAttorneyID),
				map[string]any{"case_id": c.ID, "user_id": *c.LeadAttorneyID})
		case !lead.Role.IsManagement():
			res.AddWarning(CodeLeadNotManagement,
				fmt.Sprintf("case %s: lead attorney holds %s, below management", c.CaseNumber, lead.Role),
				map[string]any{"case_id": c.ID, "user_id": lead.UserID})
		}
	}
	return res
}

// ValidateJobApplicationConsistency checks job posters and pending applications
// on closed jobs. An empty jobID checks every job in the guild.
func (v *CrossEntityValidator) ValidateJobApplicationConsistency(ctx context.Context, guildID, jobID string) Result {
	jobs, err := v.loadJobs(ctx, guildID, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res := NewResult()
			res.AddError(CodeJobNotFound, "job not found", map[string]any{"job_id": jobID})
			return res
		}
		v.logger.Error("job consistency check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("job application consistency")
	}
	roster, err := v.rosterByUser(ctx, guildID)
	if err != nil {
		v.logger.Error("job consistency roster load failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("job application consistency")
	}

	res := NewResult()
	res.SetMeta("jobs_checked", len(jobs))
	for i := range jobs {
		job := &jobs[i]
		if !roster[job.PostedBy].IsActive() {
			res.AddWarning(CodeInactiveJobPoster,
				fmt.Sprintf("job %q was posted by %s who is no longer active staff", job.Title, job.PostedBy),
				map[string]any{"job_id": job.ID})
		}
		if job.LimitCount != job.StaffRole.MaxCount() {
			res.AddWarning(CodeJobLimitMismatch,
				fmt.Sprintf("job %q limit %d differs from %s limit %d", job.Title, job.LimitCount, job.StaffRole, job.StaffRole.MaxCount()),
				map[string]any{"job_id": job.ID})
		}
		if job.IsOpen {
			continue
		}
		apps, err := v.applications.FindByJob(ctx, guildID, job.ID)
		if err != nil {
			v.logger.Error("job application lookup failed", zap.String("job_id", job.ID), zap.Error(err))
			return Failed("job application consistency")
		}
		for _, app := range apps {
			if app.Status == domain.ApplicationStatusPending {
				res.AddError(CodePendingOnClosedJob,
					fmt.Sprintf("application %s is pending on closed job %q", app.ID, job.Title),
					map[string]any{"job_id": job.ID, "application_id": app.ID})
			}
		}
	}
	return res
}

// ValidateCascadingUpdate assesses the secondary effects of a proposed mutation.
func (v *CrossEntityValidator) ValidateCascadingUpdate(ctx context.Context, guildID string, update CascadeUpdate) Result {
	switch update.Type {
	case CascadeStaffRoleChange:
		return v.cascadeRoleChange(ctx, guildID, update)
	case CascadeStaffRemoval:
		return v.cascadeRemoval(ctx, guildID, update)
	case CascadeCaseStatusChange:
		return v.cascadeCaseStatus(ctx, guildID, update)
	default:
		res := NewResult()
		res.AddError(CodeValidationError, fmt.Sprintf("unknown cascade type %q", update.Type), nil)
		return res
	}
}

func (v *CrossEntityValidator) cascadeRoleChange(ctx context.Context, guildID string, update CascadeUpdate) Result {
	res := NewResult()
	staff, err := v.staff.FindByUser(ctx, guildID, update.EntityID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res.AddError(CodeStaffNotFound, "staff member not found", map[string]any{"user_id": update.EntityID})
			return res
		}
		v.logger.Error("role change cascade failed", zap.String("user_id", update.EntityID), zap.Error(err))
		return Failed("role change impact")
	}
	if update.NewRole == "" {
		update.NewRole, _ = staff.Role.PreviousDemotion()
	}
	if !staff.Role.IsManagement() || update.NewRole.IsManagement() {
		return res
	}
	active, err := v.activeCasesFor(ctx, guildID, update.EntityID)
	if err != nil {
		v.logger.Error("role change cascade case lookup failed", zap.String("user_id", update.EntityID), zap.Error(err))
		return Failed("role change impact")
	}
	if len(active) > 0 {
		res.AddWarning(CodeActiveCaseAssignments,
			fmt.Sprintf("leaving management with %d active case(s) assigned", len(active)),
			map[string]any{"case_ids": caseIDs(active)})
	}
	return res
}

// cascadeRemoval blocks removal while the member is on any active case. There is
// no bypass for this rule.
func (v *CrossEntityValidator) cascadeRemoval(ctx context.Context, guildID string, update CascadeUpdate) Result {
	res := NewResult()
	assigned, err := v.cases.FindByLawyer(ctx, guildID, update.EntityID)
	if err != nil {
		v.logger.Error("removal cascade failed", zap.String("user_id", update.EntityID), zap.Error(err))
		return Failed("staff removal impact")
	}
	led, err := v.cases.FindByLeadAttorney(ctx, guildID, update.EntityID)
	if err != nil {
		v.logger.Error("removal cascade failed", zap.String("user_id", update.EntityID), zap.Error(err))
		return Failed("staff removal impact")
	}

	activeAssigned := activeOnly(assigned)
	activeLed := activeOnly(led)
	if len(activeAssigned) > 0 {
		res.AddError(CodeActiveCaseAssignments,
			fmt.Sprintf("staff member is assigned to %d active case(s); reassign them before removal", len(activeAssigned)),
			map[string]any{"case_ids": caseIDs(activeAssigned)})
	}
	if len(activeLed) > 0 {
		res.AddError(CodeLeadAttorneyOnCases,
			fmt.Sprintf("staff member is lead attorney on %d case(s); reassign them before removal", len(activeLed)),
			map[string]any{"case_ids": caseIDs(activeLed)})
	}
	return res
}

func (v *CrossEntityValidator) cascadeCaseStatus(ctx context.Context, guildID string, update CascadeUpdate) Result {
	res := NewResult()
	c, err := v.cases.GetByID(ctx, guildID, update.EntityID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			res.AddError(CodeCaseNotFound, "case not found", map[string]any{"case_id": update.EntityID})
			return res
		}
		v.logger.Error("case status cascade failed", zap.String("case_id", update.EntityID), zap.Error(err))
		return Failed("case status impact")
	}
	if update.NewStatus == domain.CaseStatusClosed && c.Status != domain.CaseStatusClosed {
		res.AddInfo(CodeCaseClosing,
			fmt.Sprintf("closing case %s releases %d lawyer assignment(s) and the client's case slot", c.CaseNumber, len(c.AssignedLawyerIDs)),
			map[string]any{"case_id": c.ID})
	}
	return res
}

// ValidateOrphanedEntities flags open cases without lawyers and applications
// whose job no longer exists.
func (v *CrossEntityValidator) ValidateOrphanedEntities(ctx context.Context, guildID string) Result {
	cases, err := v.cases.FindByGuild(ctx, guildID)
	if err != nil {
		v.logger.Error("orphan check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("orphaned entities")
	}
	jobs, err := v.jobs.FindByGuild(ctx, guildID, false)
	if err != nil {
		v.logger.Error("orphan check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("orphaned entities")
	}
	apps, err := v.applications.FindByGuild(ctx, guildID)
	if err != nil {
		v.logger.Error("orphan check failed", zap.String("guild_id", guildID), zap.Error(err))
		return Failed("orphaned entities")
	}

	res := NewResult()
	for i := range cases {
		if cases[i].IsActive() && len(cases[i].AssignedLawyerIDs) == 0 {
			res.AddWarning(CodeOrphanedCase,
				fmt.Sprintf("case %s has no assigned lawyers", cases[i].CaseNumber),
				map[string]any{"case_id": cases[i].ID})
		}
	}

	jobIDs := make(map[string]struct{}, len(jobs))
	for i := range jobs {
		jobIDs[jobs[i].ID] = struct{}{}
	}
	for i := range apps {
		if _, ok := jobIDs[apps[i].JobID]; !ok {
			res.AddError(CodeOrphanedApplication,
				fmt.Sprintf("application %s references missing job %s", apps[i].ID, apps[i].JobID),
				map[string]any{"application_id": apps[i].ID, "job_id": apps[i].JobID})
		}
	}
	return res
}

func (v *CrossEntityValidator) activeStaff(ctx context.Context, guildID string) ([]domain.Staff, error) {
	status := domain.StaffStatusActive
	return v.staff.FindByGuild(ctx, guildID, repository.StaffFilter{Status: &status})
}

func (v *CrossEntityValidator) rosterByUser(ctx context.Context, guildID string) (map[string]*domain.Staff, error) {
	all, err := v.staff.FindByGuild(ctx, guildID, repository.StaffFilter{})
	if err != nil {
		return nil, err
	}
	roster := make(map[string]*domain.Staff, len(all))
	for i := range all {
		roster[all[i].UserID] = &all[i]
	}
	return roster, nil
}

func (v *CrossEntityValidator) loadCases(ctx context.Context, guildID, caseID string) ([]domain.Case, error) {
	if caseID == "" {
		return v.cases.FindByGuild(ctx, guildID)
	}
	c, err := v.cases.GetByID(ctx, guildID, caseID)
	if err != nil {
		return nil, err
	}
	return []domain.Case{*c}, nil
}

func (v *CrossEntityValidator) loadJobs(ctx context.Context, guildID, jobID string) ([]domain.Job, error) {
	if jobID == "" {
		return v.jobs.FindByGuild(ctx, guildID, false)
	}
	job, err := v.jobs.GetByID(ctx, guildID, jobID)
	if err != nil {
		return nil, err
	}
	return []domain.Job{*job}, nil
}

func (v *CrossEntityValidator) activeCasesFor(ctx context.Context, guildID, userID string) ([]domain.Case, error) {
	assigned, err := v.cases.FindByLawyer(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	led, err := v.cases.FindByLeadAttorney(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []domain.Case
	for _, c := range append(activeOnly(assigned), activeOnly(led)...) {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

func activeOnly(cases []domain.Case) []domain.Case {
	var out []domain.Case
	for i := range cases {
		if cases[i].IsActive() {
			out = append(out, cases[i])
		}
	}
	return out
}

func caseIDs(cases []domain.Case) []string {
	ids := make([]string, 0, len(cases))
	for i := range cases {
		ids = append(ids, cases[i].ID)
	}
	return ids
}
