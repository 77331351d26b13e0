package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// CaseService handles the client case lifecycle.
type CaseService struct {
	cases     repository.CaseRepository
	staff     repository.StaffRepository
	validator Validator
	audit     auditTrail
	now       func() time.Time
	logger    *zap.Logger
}

// CaseDependencies bundles collaborators.
type CaseDependencies struct {
	CaseRepo   repository.CaseRepository
	StaffRepo  repository.StaffRepository
	AuditRepo  repository.AuditLogRepository
	Validator  Validator
	Dispatcher events.Dispatcher
}

func NewCaseService(deps CaseDependencies, logger *zap.Logger) *CaseService {
	return &CaseService{
		cases:     deps.CaseRepo,
		staff:     deps.StaffRepo,
		validator: deps.Validator,
		audit:     auditTrail{repo: deps.AuditRepo, dispatcher: deps.Dispatcher, logger: logger},
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// OpenCaseRequest describes a new client case.
type OpenCaseRequest struct {
	ClientID       string
	ClientUsername string
	Title          string
	Description    string
	Priority       string
}

// AssignCaseRequest adds a lawyer to a case.
type AssignCaseRequest struct {
	CaseID   string
	LawyerID string
	Lead     bool
}

// CloseCaseRequest closes a case with an outcome.
type CloseCaseRequest struct {
	CaseID string
	Result domain.CaseResult
	Notes  string
	Bypass bool
}

// CaseResult is returned by case mutations.
type CaseResult struct {
	Case       *domain.Case      `json:"case"`
	Validation validation.Result `json:"validation"`
}

// Open creates a pending case after the client case cap is checked.
func (s *CaseService) Open(ctx context.Context, pc domain.PermissionContext, req OpenCaseRequest) (*CaseResult, error) {
	data := map[string]any{
		"client_id":       req.ClientID,
		"client_username": req.ClientUsername,
		"title":           req.Title,
	}
	if req.Description != "" {
		data["description"] = req.Description
	}
	if req.Priority != "" {
		data["priority"] = req.Priority
	}
	res, err := check(ctx, s.validator, pc, "case", "create", data, false)
	if err != nil {
		return &CaseResult{Validation: res}, err
	}

	existing, err := s.cases.FindByGuild(ctx, pc.GuildID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	now := s.now()
	c := &domain.Case{
		GuildID:           pc.GuildID,
		CaseNumber:        fmt.Sprintf("%d-%04d", now.Year(), len(existing)+1),
		ClientID:          req.ClientID,
		ClientUsername:    req.ClientUsername,
		Title:             req.Title,
		Description:       req.Description,
		Status:            domain.CaseStatusPending,
		Priority:          priority,
		AssignedLawyerIDs: []string{},
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("case opened",
		zap.String("guild_id", pc.GuildID),
		zap.String("case_number", c.CaseNumber),
		zap.String("client_id", c.ClientID))
	s.audit.record(ctx, pc.GuildID, domain.AuditCaseOpened, pc.UserID, c.ID, map[string]any{
		"case_number": c.CaseNumber,
		"client_id":   c.ClientID,
		"title":       c.Title,
	})
	return &CaseResult{Case: c, Validation: res}, nil
}

// Assign adds a lawyer to an open case. A lead assignment replaces the current
// lead attorney and moves a pending case into progress.
func (s *CaseService) Assign(ctx context.Context, pc domain.PermissionContext, req AssignCaseRequest) (*CaseResult, error) {
	res, err := check(ctx, s.validator, pc, "case", "assign", map[string]any{
		"case_id":   req.CaseID,
		"lawyer_id": req.LawyerID,
		"lead":      req.Lead,
	}, false)
	if err != nil {
		return &CaseResult{Validation: res}, err
	}

	c, err := s.load(ctx, pc.GuildID, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, apperrors.NewConflict("case is closed", map[string]any{"case_id": c.ID})
	}
	if !c.HasLawyer(req.LawyerID) {
		c.AssignedLawyerIDs = append(c.AssignedLawyerIDs, req.LawyerID)
	}
	if req.Lead {
		lead := req.LawyerID
		c.LeadAttorneyID = &lead
	}
	if c.Status == domain.CaseStatusPending {
		c.Status = domain.CaseStatusInProgress
	}
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("lawyer assigned",
		zap.String("case_number", c.CaseNumber),
		zap.String("lawyer_id", req.LawyerID),
		zap.Bool("lead", req.Lead))
	s.audit.record(ctx, pc.GuildID, domain.AuditCaseAssigned, pc.UserID, c.ID, map[string]any{
		"lawyer_id": req.LawyerID,
		"lead":      req.Lead,
	})
	return &CaseResult{Case: c, Validation: res}, nil
}

// AutoAssign picks the eligible lawyer with the fewest active cases and assigns
// them through Assign. Ties go to the longest-serving member. When the case has
// no lead attorney the pick must be able to lead and becomes the lead.
func (s *CaseService) AutoAssign(ctx context.Context, pc domain.PermissionContext, caseID string) (*CaseResult, error) {
	c, err := s.load(ctx, pc.GuildID, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, apperrors.NewConflict("case is closed", map[string]any{"case_id": c.ID})
	}
	lead := c.LeadAttorneyID == nil
	required := domain.PermissionLawyer
	if lead {
		required = domain.PermissionLeadAttorney
	}

	active := domain.StaffStatusActive
	roster, err := s.staff.FindByGuild(ctx, pc.GuildID, repository.StaffFilter{Status: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	type candidate struct {
		staff domain.Staff
		load  int
	}
	var candidates []candidate
	for _, member := range roster {
		if c.HasLawyer(member.UserID) || !domain.RoleHasPermission(member.Role, required) {
			continue
		}
		load, err := s.activeLoad(ctx, pc.GuildID, member.UserID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		candidates = append(candidates, candidate{staff: member, load: load})
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no eligible lawyer available", map[string]any{
			"case_id":    c.ID,
			"permission": required,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].load != candidates[j].load {
			return candidates[i].load < candidates[j].load
		}
		return candidates[i].staff.HiredAt.Before(candidates[j].staff.HiredAt)
	})

	pick := candidates[0]
	s.logger.Debug("auto-assign selected lawyer",
		zap.String("case_number", c.CaseNumber),
		zap.String("lawyer_id", pick.staff.UserID),
		zap.Int("active_cases", pick.load))
	return s.Assign(ctx, pc, AssignCaseRequest{CaseID: c.ID, LawyerID: pick.staff.UserID, Lead: lead})
}

func (s *CaseService) activeLoad(ctx context.Context, guildID, userID string) (int, error) {
	cases, err := s.cases.FindByLawyer(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range cases {
		if cases[i].IsActive() {
			n++
		}
	}
	return n, nil
}

// Close records the outcome of a case. Only its lead attorney or senior staff may
// close it; guild owners and administrators may bypass that restriction.
func (s *CaseService) Close(ctx context.Context, pc domain.PermissionContext, req CloseCaseRequest) (*CaseResult, error) {
	data := map[string]any{"case_id": req.CaseID, "result": string(req.Result)}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	res, err := check(ctx, s.validator, pc, "case", "close", data, req.Bypass)
	if err != nil {
		return &CaseResult{Validation: res}, err
	}

	c, err := s.load(ctx, pc.GuildID, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, apperrors.NewConflict("case is already closed", map[string]any{"case_id": c.ID})
	}
	if !c.IsLeadAttorney(pc.UserID) && !pc.CanBypass() {
		actor, err := s.staff.FindByUser(ctx, pc.GuildID, pc.UserID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, apperrors.MapError(err)
		}
		if !actor.IsActive() || !domain.RoleHasPermission(actor.Role, domain.PermissionSeniorStaff) {
			return nil, apperrors.NewForbidden("only the lead attorney or senior staff may close this case")
		}
	}

	now := s.now()
	result := req.Result
	closedBy := pc.UserID
	c.Status = domain.CaseStatusClosed
	c.Result = &result
	c.ResultNotes = req.Notes
	c.ClosedAt = &now
	c.ClosedBy = &closedBy
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("case closed",
		zap.String("case_number", c.CaseNumber),
		zap.String("result", string(result)))
	s.audit.record(ctx, pc.GuildID, domain.AuditCaseClosed, pc.UserID, c.ID, map[string]any{
		"result": result,
		"notes":  req.Notes,
	})
	return &CaseResult{Case: c, Validation: res}, nil
}

// Get returns one case.
func (s *CaseService) Get(ctx context.Context, guildID, caseID string) (*domain.Case, error) {
	return s.load(ctx, guildID, caseID)
}

// List returns the cases of a guild, optionally for one client.
func (s *CaseService) List(ctx context.Context, guildID, clientID string) ([]domain.Case, error) {
	var (
		cases []domain.Case
		err   error
	)
	if clientID != "" {
		cases, err = s.cases.FindByClient(ctx, guildID, clientID)
	} else {
		cases, err = s.cases.FindByGuild(ctx, guildID)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return cases, nil
}

func (s *CaseService) load(ctx context.Context, guildID, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, guildID, caseID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return c, nil
}
