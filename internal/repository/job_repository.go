package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// JobRepository persists job postings.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Update(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, guildID, id string) (*domain.Job, error)
	FindByGuild(ctx context.Context, guildID string, openOnly bool) ([]domain.Job, error)
	Delete(ctx context.Context, guildID, id string) error
}

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository builds repository.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

const jobColumns = `id, guild_id, title, description, staff_role, limit_count, is_open, posted_by, created_at, updated_at`

func scanJob(row pgx.Row, job *domain.Job) error {
	return row.Scan(
		&job.ID,
		&job.GuildID,
		&job.Title,
		&job.Description,
		&job.StaffRole,
		&job.LimitCount,
		&job.IsOpen,
		&job.PostedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	const query = `
        INSERT INTO jobs (guild_id, title, description, staff_role, limit_count, is_open, posted_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		job.GuildID,
		job.Title,
		job.Description,
		job.StaffRole,
		job.LimitCount,
		job.IsOpen,
		job.PostedBy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *jobRepository) Update(ctx context.Context, job *domain.Job) error {
	const query = `
        UPDATE jobs SET title=$1, description=$2, staff_role=$3, limit_count=$4, is_open=$5, updated_at=NOW()
        WHERE id=$6 AND guild_id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		job.Title,
		job.Description,
		job.StaffRole,
		job.LimitCount,
		job.IsOpen,
		job.ID,
		job.GuildID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, guildID, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE guild_id=$1 AND id=$2`
	var job domain.Job
	if err := scanJob(r.pool.QueryRow(ctx, query, guildID, id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindByGuild(ctx context.Context, guildID string, openOnly bool) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE guild_id=$1`
	if openOnly {
		query += ` AND is_open`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func (r *jobRepository) Delete(ctx context.Context, guildID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE guild_id=$1 AND id=$2`, guildID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
