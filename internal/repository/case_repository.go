package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// CaseRepository persists client cases.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, guildID, id string) (*domain.Case, error)
	FindByGuild(ctx context.Context, guildID string) ([]domain.Case, error)
	FindByClient(ctx context.Context, guildID, clientID string) ([]domain.Case, error)
	FindByLawyer(ctx context.Context, guildID, userID string) ([]domain.Case, error)
	FindByLeadAttorney(ctx context.Context, guildID, userID string) ([]domain.Case, error)
	CountActiveByClient(ctx context.Context, guildID, clientID string) (int, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository builds repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, guild_id, case_number, client_id, client_username, title, description, status, priority,
        assigned_lawyer_ids, lead_attorney_id, channel_id, result, result_notes, created_at, updated_at, closed_at, closed_by`

func scanCase(row pgx.Row, c *domain.Case) error {
	return row.Scan(
		&c.ID,
		&c.GuildID,
		&c.CaseNumber,
		&c.ClientID,
		&c.ClientUsername,
		&c.Title,
		&c.Description,
		&c.Status,
		&c.Priority,
		&c.AssignedLawyerIDs,
		&c.LeadAttorneyID,
		&c.ChannelID,
		&c.Result,
		&c.ResultNotes,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
		&c.ClosedBy,
	)
}

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (guild_id, case_number, client_id, client_username, title, description, status, priority,
            assigned_lawyer_ids, lead_attorney_id, channel_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`

	if c.AssignedLawyerIDs == nil {
		c.AssignedLawyerIDs = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		c.GuildID,
		c.CaseNumber,
		c.ClientID,
		c.ClientUsername,
		c.Title,
		c.Description,
		c.Status,
		c.Priority,
		c.AssignedLawyerIDs,
		c.LeadAttorneyID,
		c.ChannelID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases
        SET title=$1, description=$2, status=$3, priority=$4, assigned_lawyer_ids=$5, lead_attorney_id=$6,
            channel_id=$7, result=$8, result_notes=$9, closed_at=$10, closed_by=$11, updated_at=NOW()
        WHERE id=$12 AND guild_id=$13`

	cmd, err := r.pool.Exec(ctx, query,
		c.Title,
		c.Description,
		c.Status,
		c.Priority,
		c.AssignedLawyerIDs,
		c.LeadAttorneyID,
		c.ChannelID,
		c.Result,
		c.ResultNotes,
		c.ClosedAt,
		c.ClosedBy,
		c.ID,
		c.GuildID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, guildID, id string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE guild_id=$1 AND id=$2`
	var c domain.Case
	if err := scanCase(r.pool.QueryRow(ctx, query, guildID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) FindByGuild(ctx context.Context, guildID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE guild_id=$1 ORDER BY created_at DESC`
	return r.queryCases(ctx, query, guildID)
}

func (r *caseRepository) FindByClient(ctx context.Context, guildID, clientID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE guild_id=$1 AND client_id=$2 ORDER BY created_at DESC`
	return r.queryCases(ctx, query, guildID, clientID)
}

func (r *caseRepository) FindByLawyer(ctx context.Context, guildID, userID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE guild_id=$1 AND $2 = ANY(assigned_lawyer_ids) ORDER BY created_at DESC`
	return r.queryCases(ctx, query, guildID, userID)
}

func (r *caseRepository) FindByLeadAttorney(ctx context.Context, guildID, userID string) ([]domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE guild_id=$1 AND lead_attorney_id=$2 ORDER BY created_at DESC`
	return r.queryCases(ctx, query, guildID, userID)
}

func (r *caseRepository) CountActiveByClient(ctx context.Context, guildID, clientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM cases WHERE guild_id=$1 AND client_id=$2 AND status<>'closed'`
	var count int
	if err := r.pool.QueryRow(ctx, query, guildID, clientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *caseRepository) queryCases(ctx context.Context, query string, args ...any) ([]domain.Case, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
