package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
)

// JobRepository keeps job postings in process memory.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

var _ repository.JobRepository = (*JobRepository)(nil)

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: map[string]domain.Job{}}
}

func (r *JobRepository) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepository) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok || stored.GuildID != job.GuildID {
		return pgx.ErrNoRows
	}
	job.UpdatedAt = time.Now().UTC()
	job.CreatedAt = stored.CreatedAt
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepository) GetByID(_ context.Context, guildID, id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok || job.GuildID != guildID {
		return nil, pgx.ErrNoRows
	}
	return &job, nil
}

func (r *JobRepository) FindByGuild(_ context.Context, guildID string, openOnly bool) ([]domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Job
	for _, job := range r.jobs {
		if job.GuildID != guildID || (openOnly && !job.IsOpen) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *JobRepository) Delete(_ context.Context, guildID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.GuildID != guildID {
		return pgx.ErrNoRows
	}
	delete(r.jobs, id)
	return nil
}

// ApplicationRepository keeps job applications in process memory. Applications
// are not tied to jobs, so deleting a job leaves them orphaned as in Postgres.
type ApplicationRepository struct {
	mu   sync.RWMutex
	apps map[string]*domain.Application
}

var _ repository.ApplicationRepository = (*ApplicationRepository)(nil)

func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{apps: map[string]*domain.Application{}}
}

func cloneApplication(a *domain.Application) domain.Application {
	out := *a
	out.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	return out
}

func (r *ApplicationRepository) Create(_ context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	app.ID = uuid.NewString()
	app.CreatedAt = now
	app.UpdatedAt = now
	if app.Answers == nil {
		app.Answers = map[string]string{}
	}
	stored := cloneApplication(app)
	r.apps[app.ID] = &stored
	return nil
}

func (r *ApplicationRepository) Update(_ context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.apps[app.ID]
	if !ok || stored.GuildID != app.GuildID {
		return pgx.ErrNoRows
	}
	stored.Status = app.Status
	stored.ReviewedBy = app.ReviewedBy
	stored.ReviewedAt = app.ReviewedAt
	stored.RejectionNotes = app.RejectionNotes
	stored.UpdatedAt = time.Now().UTC()
	app.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ApplicationRepository) GetByID(_ context.Context, guildID, id string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.apps[id]
	if !ok || stored.GuildID != guildID {
		return nil, pgx.ErrNoRows
	}
	out := cloneApplication(stored)
	return &out, nil
}

func (r *ApplicationRepository) FindByGuild(_ context.Context, guildID string) ([]domain.Application, error) {
	return r.filter(guildID, func(*domain.Application) bool { return true }), nil
}

func (r *ApplicationRepository) FindByJob(_ context.Context, guildID, jobID string) ([]domain.Application, error) {
	return r.filter(guildID, func(a *domain.Application) bool { return a.JobID == jobID }), nil
}

func (r *ApplicationRepository) FindPendingByApplicant(_ context.Context, guildID, jobID, applicantID string) (*domain.Application, error) {
	found := r.filter(guildID, func(a *domain.Application) bool {
		return a.JobID == jobID && a.ApplicantID == applicantID && a.Status == domain.ApplicationStatusPending
	})
	if len(found) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &found[0], nil
}

func (r *ApplicationRepository) RejectPendingForJob(_ context.Context, guildID, jobID, reviewerID, notes string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, a := range r.apps {
		if a.GuildID != guildID || a.JobID != jobID || a.Status != domain.ApplicationStatusPending {
			continue
		}
		reviewer := reviewerID
		reviewedAt := now
		a.Status = domain.ApplicationStatusRejected
		a.ReviewedBy = &reviewer
		a.ReviewedAt = &reviewedAt
		a.RejectionNotes = notes
		a.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *ApplicationRepository) filter(guildID string, keep func(*domain.Application) bool) []domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Application
	for _, a := range r.apps {
		if a.GuildID == guildID && keep(a) {
			out = append(out, cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
