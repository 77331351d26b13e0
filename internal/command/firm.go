package command

import (
	"context"
	"fmt"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/service"
)

// Services are the command targets.
type Services struct {
	Staff       *service.StaffService
	Cases       *service.CaseService
	Jobs        *service.JobService
	Maintenance *service.MaintenanceService
}

// RegisterFirmCommands installs every firm command on reg.
func RegisterFirmCommands(reg *Registry, svc Services) {
	h := firmHandlers{svc: svc}

	reg.Register("staff", "hire", h.hire)
	reg.Register("staff", "promote", h.promote)
	reg.Register("staff", "demote", h.demote)
	reg.Register("staff", "fire", h.fire)
	reg.Register("staff", "set-status", h.setStatus)
	reg.Register("staff", "info", h.staffInfo)
	reg.Register("staff", "list", h.staffList)

	reg.Register("case", "create", h.caseCreate)
	reg.Register("case", "assign", h.caseAssign)
	reg.Register("case", "auto-assign", h.caseAutoAssign)
	reg.Register("case", "close", h.caseClose)
	reg.Register("case", "list", h.caseList)

	reg.Register("job", "post", h.jobPost)
	reg.Register("job", "close", h.jobClose)
	reg.Register("job", "apply", h.jobApply)
	reg.Register("job", "list", h.jobList)
	reg.Register("application", "review", h.applicationReview)

	reg.Register("role", "sync", h.roleSync)
	reg.Register("role", "sync-all", h.roleSyncAll)
	reg.Register("role", "conflicts", h.roleConflicts)
	reg.Register("role", "resolve", h.roleResolve)
	reg.Register("consistency", "check", h.consistency)
	reg.Register("audit", "list", h.auditList)
}

type firmHandlers struct {
	svc Services
}

func (h firmHandlers) hire(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Staff.Hire(ctx, req.Permission, service.HireRequest{
		UserID:   req.String("user_id"),
		Username: req.String("username"),
		Role:     domain.StaffRole(req.String("role")),
		Reason:   req.String("reason"),
		Bypass:   req.Bypass(),
	})
	if err != nil {
		return nil, err
	}
	return staffResponse(fmt.Sprintf("Hired %s as %s.", res.Staff.Username, res.Staff.Role), res), nil
}

func (h firmHandlers) promote(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Staff.Promote(ctx, req.Permission, roleChange(req))
	if err != nil {
		return nil, err
	}
	return staffResponse(fmt.Sprintf("Promoted %s to %s.", res.Staff.Username, res.Staff.Role), res), nil
}

func (h firmHandlers) demote(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Staff.Demote(ctx, req.Permission, roleChange(req))
	if err != nil {
		return nil, err
	}
	return staffResponse(fmt.Sprintf("Demoted %s to %s.", res.Staff.Username, res.Staff.Role), res), nil
}

func (h firmHandlers) fire(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Staff.Fire(ctx, req.Permission, service.FireRequest{
		UserID: req.String("user_id"),
		Reason: req.String("reason"),
		Bypass: req.Bypass(),
	})
	if err != nil {
		return nil, err
	}
	return staffResponse(fmt.Sprintf("%s is no longer with the firm.", res.Staff.Username), res), nil
}

func (h firmHandlers) setStatus(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Staff.SetStatus(ctx, req.Permission, service.StatusChangeRequest{
		UserID: req.String("user_id"),
		Status: domain.StaffStatus(req.String("status")),
		Reason: req.String("reason"),
		Bypass: req.Bypass(),
	})
	if err != nil {
		return nil, err
	}
	return staffResponse(fmt.Sprintf("%s is now %s.", res.Staff.Username, res.Staff.Status), res), nil
}

func (h firmHandlers) staffInfo(ctx context.Context, req Request) (*Response, error) {
	staff, err := h.svc.Staff.Get(ctx, req.Permission.GuildID, req.String("user_id"))
	if err != nil {
		return nil, err
	}
	return &Response{
		Message: fmt.Sprintf("%s: %s (%s), %d history entries", staff.Username, staff.Role, staff.Status, len(staff.PromotionHistory)),
		Data:    staff,
	}, nil
}

func (h firmHandlers) staffList(ctx context.Context, req Request) (*Response, error) {
	var filter repository.StaffFilter
	if role := domain.StaffRole(req.String("role")); role != "" {
		filter.Role = &role
	}
	if status := domain.StaffStatus(req.String("status")); status != "" {
		filter.Status = &status
	}
	filter.Limit = req.Int("limit", 100)
	roster, err := h.svc.Staff.List(ctx, req.Permission.GuildID, filter)
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("%d staff record(s)", len(roster)), Data: roster}, nil
}

func (h firmHandlers) caseCreate(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Cases.Open(ctx, req.Permission, service.OpenCaseRequest{
		ClientID:       req.String("client_id"),
		ClientUsername: req.String("client_username"),
		Title:          req.String("title"),
		Description:    req.String("description"),
		Priority:       req.String("priority"),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: "Opened case " + res.Case.CaseNumber + ".", Data: res.Case, Validation: &res.Validation}, nil
}

func (h firmHandlers) caseAssign(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Cases.Assign(ctx, req.Permission, service.AssignCaseRequest{
		CaseID:   req.String("case_id"),
		LawyerID: req.String("lawyer_id"),
		Lead:     req.Bool("lead"),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: "Assigned lawyer to case " + res.Case.CaseNumber + ".", Data: res.Case, Validation: &res.Validation}, nil
}

func (h firmHandlers) caseAutoAssign(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Cases.AutoAssign(ctx, req.Permission, req.String("case_id"))
	if err != nil {
		return nil, err
	}
	lawyer := res.Case.AssignedLawyerIDs[len(res.Case.AssignedLawyerIDs)-1]
	return &Response{
		Message:    fmt.Sprintf("Assigned <@%s> to case %s.", lawyer, res.Case.CaseNumber),
		Data:       res.Case,
		Validation: &res.Validation,
	}, nil
}

func (h firmHandlers) caseClose(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Cases.Close(ctx, req.Permission, service.CloseCaseRequest{
		CaseID: req.String("case_id"),
		Result: domain.CaseResult(req.String("result")),
		Notes:  req.String("notes"),
		Bypass: req.Bypass(),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: "Closed case " + res.Case.CaseNumber + ".", Data: res.Case, Validation: &res.Validation}, nil
}

func (h firmHandlers) caseList(ctx context.Context, req Request) (*Response, error) {
	cases, err := h.svc.Cases.List(ctx, req.Permission.GuildID, req.String("client_id"))
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("%d case(s)", len(cases)), Data: cases}, nil
}

func (h firmHandlers) jobPost(ctx context.Context, req Request) (*Response, error) {
	job, res, err := h.svc.Jobs.Post(ctx, req.Permission, service.PostJobRequest{
		Title:       req.String("title"),
		Description: req.String("description"),
		Role:        domain.StaffRole(req.String("role")),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Posted %s (%s).", job.Title, job.StaffRole), Data: job, Validation: &res}, nil
}

func (h firmHandlers) jobClose(ctx context.Context, req Request) (*Response, error) {
	job, rejected, err := h.svc.Jobs.Close(ctx, req.Permission, req.String("job_id"))
	if err != nil {
		return nil, err
	}
	return &Response{
		Message: fmt.Sprintf("Closed %s; %d pending application(s) rejected.", job.Title, rejected),
		Data:    job,
	}, nil
}

func (h firmHandlers) jobApply(ctx context.Context, req Request) (*Response, error) {
	answers := map[string]string{}
	if raw, ok := req.Params["answers"].(map[string]any); ok {
		for k, v := range raw {
			answers[k] = fmt.Sprint(v)
		}
	}
	app, res, err := h.svc.Jobs.Apply(ctx, req.Permission, service.ApplyRequest{
		JobID:    req.String("job_id"),
		Username: req.String("username"),
		Answers:  answers,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: "Application submitted.", Data: app, Validation: &res}, nil
}

func (h firmHandlers) jobList(ctx context.Context, req Request) (*Response, error) {
	jobs, err := h.svc.Jobs.List(ctx, req.Permission.GuildID, !req.Bool("all"))
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("%d job(s)", len(jobs)), Data: jobs}, nil
}

func (h firmHandlers) applicationReview(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Jobs.Review(ctx, req.Permission, service.ReviewRequest{
		ApplicationID: req.String("application_id"),
		Decision:      domain.ApplicationStatus(req.String("decision")),
		Notes:         req.String("notes"),
		Bypass:        req.Bypass(),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Message: "Application " + string(res.Application.Status) + ".", Data: res, Validation: &res.Validation}, nil
}

func (h firmHandlers) roleSync(ctx context.Context, req Request) (*Response, error) {
	outcome, err := h.svc.Maintenance.SyncMember(ctx, req.Permission, req.String("user_id"))
	if err != nil {
		return nil, err
	}
	msg := "Roles already in sync."
	if outcome.Changed() {
		msg = fmt.Sprintf("Roles synchronized: %d added, %d removed.", len(outcome.Added), len(outcome.Removed))
	}
	return &Response{Message: msg, Data: outcome}, nil
}

func (h firmHandlers) roleSyncAll(ctx context.Context, req Request) (*Response, error) {
	report, err := h.svc.Maintenance.SyncGuild(ctx, req.Permission, nil)
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Synchronized %d/%d members.", report.Succeeded, report.Total), Data: report}, nil
}

func (h firmHandlers) roleConflicts(ctx context.Context, req Request) (*Response, error) {
	report, err := h.svc.Maintenance.ScanConflicts(ctx, req.Permission, nil)
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("%d conflict(s) among %d members.", len(report.Conflicts), report.Scanned), Data: report}, nil
}

func (h firmHandlers) roleResolve(ctx context.Context, req Request) (*Response, error) {
	if userID := req.String("user_id"); userID != "" {
		res, err := h.svc.Maintenance.ResolveMember(ctx, req.Permission, userID)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return &Response{Message: "No conflict found."}, nil
		}
		return &Response{Message: fmt.Sprintf("Kept %s; removed %d role(s).", res.Kept, len(res.Removed)), Data: res}, nil
	}
	report, err := h.svc.Maintenance.ResolveConflicts(ctx, req.Permission, nil)
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("Resolved %d/%d conflicts.", report.Succeeded, report.Total), Data: report}, nil
}

func (h firmHandlers) consistency(ctx context.Context, req Request) (*Response, error) {
	res, err := h.svc.Maintenance.Consistency(ctx, req.Permission)
	if err != nil {
		return nil, err
	}
	msg := "No consistency problems found."
	if len(res.Issues) > 0 {
		msg = fmt.Sprintf("%d error(s), %d warning(s).", len(res.Errors()), len(res.Warnings()))
	}
	return &Response{Message: msg, Validation: &res}, nil
}

func (h firmHandlers) auditList(ctx context.Context, req Request) (*Response, error) {
	entries, err := h.svc.Maintenance.AuditLog(ctx, req.Permission, req.Int("limit", 25))
	if err != nil {
		return nil, err
	}
	return &Response{Message: fmt.Sprintf("%d audit entries", len(entries)), Data: entries}, nil
}

func roleChange(req Request) service.RoleChangeRequest {
	return service.RoleChangeRequest{
		UserID: req.String("user_id"),
		Role:   domain.StaffRole(req.String("role")),
		Reason: req.String("reason"),
		Bypass: req.Bypass(),
	}
}

func staffResponse(msg string, res *service.StaffResult) *Response {
	return &Response{Message: msg, Data: res, Validation: &res.Validation}
}
