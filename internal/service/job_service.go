package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/events"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

const closedJobNotes = "position closed"

// JobService manages job postings and the applications made against them.
type JobService struct {
	jobs      repository.JobRepository
	apps      repository.ApplicationRepository
	staff     repository.StaffRepository
	hiring    *StaffService
	validator Validator
	audit     auditTrail
	logger    *zap.Logger
}

// JobDependencies bundles collaborators. Hiring performs the hire of accepted applicants.
type JobDependencies struct {
	JobRepo         repository.JobRepository
	ApplicationRepo repository.ApplicationRepository
	StaffRepo       repository.StaffRepository
	AuditRepo       repository.AuditLogRepository
	Hiring          *StaffService
	Validator       Validator
	Dispatcher      events.Dispatcher
}

func NewJobService(deps JobDependencies, logger *zap.Logger) *JobService {
	return &JobService{
		jobs:      deps.JobRepo,
		apps:      deps.ApplicationRepo,
		staff:     deps.StaffRepo,
		hiring:    deps.Hiring,
		validator: deps.Validator,
		audit:     auditTrail{repo: deps.AuditRepo, dispatcher: deps.Dispatcher, logger: logger},
		logger:    logger,
	}
}

// PostJobRequest opens a position for one rank.
type PostJobRequest struct {
	Title       string
	Description string
	Role        domain.StaffRole
}

// ApplyRequest submits an application.
type ApplyRequest struct {
	JobID    string
	Username string
	Answers  map[string]string
}

// ReviewRequest decides an application.
type ReviewRequest struct {
	ApplicationID string
	Decision      domain.ApplicationStatus
	Notes         string
	Bypass        bool
}

// ReviewResult reports a decided application and, on acceptance, the hire.
type ReviewResult struct {
	Application *domain.Application `json:"application"`
	Hire        *StaffResult        `json:"hire,omitempty"`
	Validation  validation.Result   `json:"validation"`
}

// Post creates an open job whose limit mirrors the rank's occupancy ceiling.
func (s *JobService) Post(ctx context.Context, pc domain.PermissionContext, req PostJobRequest) (*domain.Job, validation.Result, error) {
	data := map[string]any{"title": req.Title, "role": string(req.Role)}
	if req.Description != "" {
		data["description"] = req.Description
	}
	res, err := check(ctx, s.validator, pc, "job", "post", data, false)
	if err != nil {
		return nil, res, err
	}

	job := &domain.Job{
		GuildID:     pc.GuildID,
		Title:       req.Title,
		Description: req.Description,
		StaffRole:   req.Role,
		LimitCount:  req.Role.MaxCount(),
		IsOpen:      true,
		PostedBy:    pc.UserID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, res, apperrors.MapError(err)
	}
	s.logger.Info("job posted", zap.String("guild_id", pc.GuildID), zap.String("job_id", job.ID), zap.String("role", req.Role.String()))
	s.audit.record(ctx, pc.GuildID, domain.AuditJobPosted, pc.UserID, job.ID, map[string]any{
		"title": job.Title,
		"role":  job.StaffRole,
	})
	return job, res, nil
}

// Close stops accepting applications and rejects every pending one.
func (s *JobService) Close(ctx context.Context, pc domain.PermissionContext, jobID string) (*domain.Job, int64, error) {
	if _, err := check(ctx, s.validator, pc, "job", "close", map[string]any{"job_id": jobID}, false); err != nil {
		return nil, 0, err
	}
	job, err := s.loadJob(ctx, pc.GuildID, jobID)
	if err != nil {
		return nil, 0, err
	}
	if job.IsOpen {
		job.IsOpen = false
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, 0, apperrors.MapError(err)
		}
	}
	rejected, err := s.apps.RejectPendingForJob(ctx, pc.GuildID, job.ID, pc.UserID, closedJobNotes)
	if err != nil {
		return job, 0, apperrors.MapError(err)
	}
	s.logger.Info("job closed", zap.String("job_id", job.ID), zap.Int64("rejected", rejected))
	s.audit.record(ctx, pc.GuildID, domain.AuditJobClosed, pc.UserID, job.ID, map[string]any{
		"title":            job.Title,
		"rejected_pending": rejected,
	})
	return job, rejected, nil
}

// Apply records a pending application by the caller. The job must be open and
// the caller may hold only one pending application per job.
func (s *JobService) Apply(ctx context.Context, pc domain.PermissionContext, req ApplyRequest) (*domain.Application, validation.Result, error) {
	res, err := check(ctx, s.validator, pc, "job", "apply", map[string]any{
		"job_id":   req.JobID,
		"username": req.Username,
	}, false)
	if err != nil {
		return nil, res, err
	}

	job, err := s.loadJob(ctx, pc.GuildID, req.JobID)
	if err != nil {
		return nil, res, err
	}
	if !job.IsOpen {
		return nil, res, apperrors.NewConflict("job is not accepting applications", map[string]any{"job_id": job.ID})
	}
	if staff, err := s.staff.FindByUser(ctx, pc.GuildID, pc.UserID); err == nil && staff.IsActive() {
		return nil, res, apperrors.NewConflict("active staff cannot apply", map[string]any{"role": staff.Role})
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, res, apperrors.MapError(err)
	}
	if _, err := s.apps.FindPendingByApplicant(ctx, pc.GuildID, job.ID, pc.UserID); err == nil {
		return nil, res, apperrors.NewConflict("an application for this job is already pending", map[string]any{"job_id": job.ID})
	} else if !apperrors.IsNotFound(err) {
		return nil, res, apperrors.MapError(err)
	}

	app := &domain.Application{
		GuildID:     pc.GuildID,
		JobID:       job.ID,
		ApplicantID: pc.UserID,
		Username:    req.Username,
		Answers:     req.Answers,
		Status:      domain.ApplicationStatusPending,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, res, apperrors.MapError(err)
	}
	s.audit.record(ctx, pc.GuildID, domain.AuditApplicationCreated, pc.UserID, app.ID, map[string]any{
		"job_id":   job.ID,
		"username": app.Username,
	})
	return app, res, nil
}

// Review accepts or rejects a pending application. Acceptance hires the
// applicant into the job's rank; a failed hire leaves the application pending.
func (s *JobService) Review(ctx context.Context, pc domain.PermissionContext, req ReviewRequest) (*ReviewResult, error) {
	data := map[string]any{"application_id": req.ApplicationID, "decision": string(req.Decision)}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	res, err := check(ctx, s.validator, pc, "application", "review", data, false)
	if err != nil {
		return &ReviewResult{Validation: res}, err
	}

	app, err := s.apps.GetByID(ctx, pc.GuildID, req.ApplicationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("application", map[string]any{"application_id": req.ApplicationID})
		}
		return nil, apperrors.MapError(err)
	}
	if app.Status != domain.ApplicationStatusPending {
		return nil, apperrors.NewConflict("application has already been reviewed", map[string]any{"status": app.Status})
	}
	job, err := s.loadJob(ctx, pc.GuildID, app.JobID)
	if err != nil {
		return nil, err
	}

	out := &ReviewResult{Application: app, Validation: res}
	if req.Decision == domain.ApplicationStatusAccepted {
		if !job.IsOpen {
			return nil, apperrors.NewConflict("job is closed", map[string]any{"job_id": job.ID})
		}
		hire, err := s.hiring.Hire(ctx, pc, HireRequest{
			UserID:   app.ApplicantID,
			Username: app.Username,
			Role:     job.StaffRole,
			Reason:   "accepted application for " + job.Title,
			Bypass:   req.Bypass,
		})
		if err != nil {
			return out, err
		}
		out.Hire = hire
	}

	now := time.Now().UTC()
	reviewer := pc.UserID
	app.Status = req.Decision
	app.ReviewedBy = &reviewer
	app.ReviewedAt = &now
	app.RejectionNotes = ""
	if req.Decision == domain.ApplicationStatusRejected {
		app.RejectionNotes = req.Notes
	}
	if err := s.apps.Update(ctx, app); err != nil {
		return out, apperrors.MapError(err)
	}

	s.logger.Info("application reviewed",
		zap.String("application_id", app.ID),
		zap.String("decision", string(app.Status)))
	s.audit.record(ctx, pc.GuildID, domain.AuditApplicationReviewed, pc.UserID, app.ApplicantID, map[string]any{
		"application_id": app.ID,
		"job_id":         job.ID,
		"decision":       app.Status,
		"notes":          req.Notes,
	})
	s.audit.publish(ctx, events.EventApplicationReviewed, pc.GuildID, app.ApplicantID, pc.UserID, events.ApplicationReviewedPayload{
		JobTitle: job.Title,
		Status:   app.Status,
		Notes:    req.Notes,
	})
	return out, nil
}

// List returns the jobs of a guild.
func (s *JobService) List(ctx context.Context, guildID string, openOnly bool) ([]domain.Job, error) {
	jobs, err := s.jobs.FindByGuild(ctx, guildID, openOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return jobs, nil
}

// Applications returns the applications made against one job.
func (s *JobService) Applications(ctx context.Context, guildID, jobID string) ([]domain.Application, error) {
	apps, err := s.apps.FindByJob(ctx, guildID, jobID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return apps, nil
}

func (s *JobService) loadJob(ctx context.Context, guildID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, guildID, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("job", map[string]any{"job_id": jobID})
		}
		return nil, apperrors.MapError(err)
	}
	return job, nil
}
