package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-ops/internal/domain"
)

// AuditLogRepository stores append-only audit entries.
type AuditLogRepository interface {
	LogAction(ctx context.Context, entry *domain.AuditEntry) error
	ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.AuditEntry, error)
	ListByTarget(ctx context.Context, guildID, targetID string) ([]domain.AuditEntry, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) LogAction(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_log (id, guild_id, action, actor_id, target_id, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.GuildID,
		entry.Action,
		entry.ActorID,
		entry.TargetID,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *auditLogRepository) ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, guild_id, action, actor_id, target_id, details, created_at
        FROM audit_log WHERE guild_id=$1 ORDER BY created_at DESC LIMIT $2`
	return r.query(ctx, query, guildID, limit)
}

func (r *auditLogRepository) ListByTarget(ctx context.Context, guildID, targetID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, guild_id, action, actor_id, target_id, details, created_at
        FROM audit_log WHERE guild_id=$1 AND target_id=$2 ORDER BY created_at ASC`
	return r.query(ctx, query, guildID, targetID)
}

func (r *auditLogRepository) query(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.GuildID,
			&entry.Action,
			&entry.ActorID,
			&entry.TargetID,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
