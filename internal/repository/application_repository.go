package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// ApplicationRepository persists job applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	Update(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, guildID, id string) (*domain.Application, error)
	FindByGuild(ctx context.Context, guildID string) ([]domain.Application, error)
	FindByJob(ctx context.Context, guildID, jobID string) ([]domain.Application, error)
	FindPendingByApplicant(ctx context.Context, guildID, jobID, applicantID string) (*domain.Application, error)
	RejectPendingForJob(ctx context.Context, guildID, jobID, reviewerID, notes string) (int64, error)
}

type applicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository builds repository.
func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &applicationRepository{pool: pool}
}

const applicationColumns = `id, guild_id, job_id, applicant_id, username, answers, status, reviewed_by, reviewed_at,
        rejection_notes, created_at, updated_at`

func scanApplication(row pgx.Row, app *domain.Application) error {
	return row.Scan(
		&app.ID,
		&app.GuildID,
		&app.JobID,
		&app.ApplicantID,
		&app.Username,
		&app.Answers,
		&app.Status,
		&app.ReviewedBy,
		&app.ReviewedAt,
		&app.RejectionNotes,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	const query = `
        INSERT INTO job_applications (guild_id, job_id, applicant_id, username, answers, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	if app.Answers == nil {
		app.Answers = map[string]string{}
	}
	return r.pool.QueryRow(ctx, query,
		app.GuildID,
		app.JobID,
		app.ApplicantID,
		app.Username,
		app.Answers,
		app.Status,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
}

func (r *applicationRepository) Update(ctx context.Context, app *domain.Application) error {
	const query = `
        UPDATE job_applications SET status=$1, reviewed_by=$2, reviewed_at=$3, rejection_notes=$4, updated_at=NOW()
        WHERE id=$5 AND guild_id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		app.Status,
		app.ReviewedBy,
		app.ReviewedAt,
		app.RejectionNotes,
		app.ID,
		app.GuildID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, guildID, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE guild_id=$1 AND id=$2`
	var app domain.Application
	if err := scanApplication(r.pool.QueryRow(ctx, query, guildID, id), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByGuild(ctx context.Context, guildID string) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE guild_id=$1 ORDER BY created_at ASC`
	return r.queryApplications(ctx, query, guildID)
}

func (r *applicationRepository) FindByJob(ctx context.Context, guildID, jobID string) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE guild_id=$1 AND job_id=$2 ORDER BY created_at ASC`
	return r.queryApplications(ctx, query, guildID, jobID)
}

func (r *applicationRepository) FindPendingByApplicant(ctx context.Context, guildID, jobID, applicantID string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications
        WHERE guild_id=$1 AND job_id=$2 AND applicant_id=$3 AND status='pending' LIMIT 1`
	var app domain.Application
	if err := scanApplication(r.pool.QueryRow(ctx, query, guildID, jobID, applicantID), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) RejectPendingForJob(ctx context.Context, guildID, jobID, reviewerID, notes string) (int64, error) {
	const query = `
        UPDATE job_applications
        SET status='rejected', reviewed_by=$1, reviewed_at=$2, rejection_notes=$3, updated_at=NOW()
        WHERE guild_id=$4 AND job_id=$5 AND status='pending'`
	cmd, err := r.pool.Exec(ctx, query, reviewerID, time.Now().UTC(), notes, guildID, jobID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *applicationRepository) queryApplications(ctx context.Context, query string, args ...any) ([]domain.Application, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Application
	for rows.Next() {
		var app domain.Application
		if err := scanApplication(rows, &app); err != nil {
			return nil, err
		}
		result = append(result, app)
	}
	return result, rows.Err()
}
