package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/firm-ops/internal/domain"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

const (
	uniqueViolation          = "23505"
	staffGuildUserConstraint = "staff_guild_user_key"
)

// StaffRepository handles persistence for staff records and their promotion history.
// Every operation is scoped by guild.
type StaffRepository interface {
	FindByGuild(ctx context.Context, guildID string, filter StaffFilter) ([]domain.Staff, error)
	FindByUser(ctx context.Context, guildID, userID string) (*domain.Staff, error)
	CountByRole(ctx context.Context, guildID string, role domain.StaffRole) (int, error)
	Create(ctx context.Context, staff *domain.Staff, limit int) error
	ChangeRole(ctx context.Context, staff *domain.Staff, record domain.PromotionRecord, limit int) error
	Terminate(ctx context.Context, staff *domain.Staff, record domain.PromotionRecord) error
	SetStatus(ctx context.Context, staff *domain.Staff, status domain.StaffStatus, limit int) error
	UpdateDiscordRole(ctx context.Context, guildID, userID string, roleID *string) error
	History(ctx context.Context, staffID string) ([]domain.PromotionRecord, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Status *domain.StaffStatus
	Limit  int
	Offset int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, guild_id, user_id, username, role, status, hired_at, hired_by, discord_role_id, created_at, updated_at`

func scanStaff(row pgx.Row, staff *domain.Staff) error {
	return row.Scan(
		&staff.ID,
		&staff.GuildID,
		&staff.UserID,
		&staff.Username,
		&staff.Role,
		&staff.Status,
		&staff.HiredAt,
		&staff.HiredBy,
		&staff.DiscordRoleID,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	)
}

func (r *staffRepository) FindByGuild(ctx context.Context, guildID string, filter StaffFilter) ([]domain.Staff, error) {
	query, args := staffListQuery(guildID, filter)
	return r.queryStaff(ctx, query, args...)
}

// staffListQuery builds the roster query. A zero Limit returns every matching
// record; internal roster checks rely on seeing the whole guild.
func staffListQuery(guildID string, filter StaffFilter) (string, []any) {
	query := `SELECT ` + staffColumns + ` FROM staff`
	args := []any{guildID}
	clauses := []string{"guild_id=$1"}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ")
	query += " ORDER BY hired_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

func (r *staffRepository) FindByUser(ctx context.Context, guildID, userID string) (*domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE guild_id=$1 AND user_id=$2`

	var staff domain.Staff
	if err := scanStaff(r.pool.QueryRow(ctx, query, guildID, userID), &staff); err != nil {
		return nil, err
	}
	history, err := r.History(ctx, staff.ID)
	if err != nil {
		return nil, err
	}
	staff.PromotionHistory = history
	return &staff, nil
}

func (r *staffRepository) CountByRole(ctx context.Context, guildID string, role domain.StaffRole) (int, error) {
	return countActive(ctx, r.pool, guildID, role)
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.Staff, limit int) error {
	const insertStaff = `
        INSERT INTO staff (guild_id, user_id, username, role, status, hired_at, hired_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := reserveSlot(ctx, tx, staff.GuildID, staff.Role, limit); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, insertStaff,
			staff.GuildID,
			staff.UserID,
			staff.Username,
			staff.Role,
			staff.Status,
			staff.HiredAt,
			staff.HiredBy,
		).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt); err != nil {
			return err
		}
		for i := range staff.PromotionHistory {
			if err := insertPromotion(ctx, tx, staff.ID, &staff.PromotionHistory[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return translateWriteError(err)
}

func (r *staffRepository) ChangeRole(ctx context.Context, staff *domain.Staff, record domain.PromotionRecord, limit int) error {
	const query = `
        UPDATE staff SET role=$1, updated_at=NOW()
        WHERE id=$2 AND role=$3 AND status='active'`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := reserveSlot(ctx, tx, staff.GuildID, record.ToRole, limit); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, query, record.ToRole, staff.ID, record.FromRole)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return insertPromotion(ctx, tx, staff.ID, &record)
	})
	if err != nil {
		return translateWriteError(err)
	}
	staff.Role = record.ToRole
	staff.PromotionHistory = append(staff.PromotionHistory, record)
	return nil
}

func (r *staffRepository) Terminate(ctx context.Context, staff *domain.Staff, record domain.PromotionRecord) error {
	const query = `UPDATE staff SET status='terminated', updated_at=NOW() WHERE id=$1 AND status<>'terminated'`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query, staff.ID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return insertPromotion(ctx, tx, staff.ID, &record)
	})
	if err != nil {
		return err
	}
	staff.Status = domain.StaffStatusTerminated
	staff.PromotionHistory = append(staff.PromotionHistory, record)
	return nil
}

// SetStatus moves a record between active and inactive. Reactivation takes the
// role's slot under the same lock as a hire.
func (r *staffRepository) SetStatus(ctx context.Context, staff *domain.Staff, status domain.StaffStatus, limit int) error {
	const query = `
        UPDATE staff SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING updated_at`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if status == domain.StaffStatusActive {
			if err := reserveSlot(ctx, tx, staff.GuildID, staff.Role, limit); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, query, status, staff.ID, staff.Status).Scan(&staff.UpdatedAt)
	})
	if err != nil {
		return translateWriteError(err)
	}
	staff.Status = status
	return nil
}

func (r *staffRepository) UpdateDiscordRole(ctx context.Context, guildID, userID string, roleID *string) error {
	const query = `UPDATE staff SET discord_role_id=$1, updated_at=NOW() WHERE guild_id=$2 AND user_id=$3`
	cmd, err := r.pool.Exec(ctx, query, roleID, guildID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRepository) History(ctx context.Context, staffID string) ([]domain.PromotionRecord, error) {
	const query = `
        SELECT id, from_role, to_role, actor_user_id, reason, action_type, created_at
        FROM promotion_records WHERE staff_id=$1 ORDER BY created_at ASC, seq ASC`

	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PromotionRecord
	for rows.Next() {
		var rec domain.PromotionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.FromRole,
			&rec.ToRole,
			&rec.ActorUserID,
			&rec.Reason,
			&rec.ActionType,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *staffRepository) queryStaff(ctx context.Context, query string, args ...any) ([]domain.Staff, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Staff
	for rows.Next() {
		var staff domain.Staff
		if err := scanStaff(rows, &staff); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countActive(ctx context.Context, q queryer, guildID string, role domain.StaffRole) (int, error) {
	const query = `SELECT COUNT(*) FROM staff WHERE guild_id=$1 AND role=$2 AND status='active'`
	var count int
	if err := q.QueryRow(ctx, query, guildID, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// reserveSlot serializes writers for one (guild, role) pair and re-checks occupancy
// inside the transaction. A limit of zero or less skips the occupancy check.
func reserveSlot(ctx context.Context, tx pgx.Tx, guildID string, role domain.StaffRole, limit int) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, guildID+":"+string(role)); err != nil {
		return err
	}
	if limit <= 0 {
		return nil
	}
	count, err := countActive(ctx, tx, guildID, role)
	if err != nil {
		return err
	}
	if count >= limit {
		return fmt.Errorf("%w: %s has %d/%d active", apperrors.ErrRoleLimitReached, role, count, limit)
	}
	return nil
}

func insertPromotion(ctx context.Context, tx pgx.Tx, staffID string, rec *domain.PromotionRecord) error {
	const query = `
        INSERT INTO promotion_records (id, staff_id, from_role, to_role, actor_user_id, reason, action_type, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.Exec(ctx, query,
		rec.ID,
		staffID,
		rec.FromRole,
		rec.ToRole,
		rec.ActorUserID,
		rec.Reason,
		rec.ActionType,
		rec.CreatedAt,
	)
	return err
}

// translateWriteError maps unique violations onto the repository sentinels. The
// active Managing Partner index backs the singleton rank even when a bypass skips
// the occupancy check.
func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == staffGuildUserConstraint {
			return apperrors.ErrStaffExists
		}
		return fmt.Errorf("%w: %s", apperrors.ErrRoleLimitReached, pgErr.ConstraintName)
	}
	return err
}
