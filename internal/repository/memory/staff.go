package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// StaffRepository keeps staff records in process memory. It enforces the same
// occupancy and uniqueness rules as the Postgres implementation.
type StaffRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Staff
}

var _ repository.StaffRepository = (*StaffRepository)(nil)

// NewStaffRepository returns an empty repository.
func NewStaffRepository() *StaffRepository {
	return &StaffRepository{records: map[string]*domain.Staff{}}
}

func staffKey(guildID, userID string) string {
	return guildID + "/" + userID
}

func cloneStaff(s *domain.Staff) domain.Staff {
	out := *s
	out.PromotionHistory = append([]domain.PromotionRecord(nil), s.PromotionHistory...)
	if s.DiscordRoleID != nil {
		id := *s.DiscordRoleID
		out.DiscordRoleID = &id
	}
	return out
}

func (r *StaffRepository) FindByGuild(_ context.Context, guildID string, filter repository.StaffFilter) ([]domain.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Staff
	for _, s := range r.records {
		if s.GuildID != guildID {
			continue
		}
		if filter.Role != nil && s.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, cloneStaff(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HiredAt.Before(out[j].HiredAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *StaffRepository) FindByUser(_ context.Context, guildID, userID string) (*domain.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.records[staffKey(guildID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneStaff(s)
	return &out, nil
}

func (r *StaffRepository) CountByRole(_ context.Context, guildID string, role domain.StaffRole) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActive(guildID, role), nil
}

func (r *StaffRepository) countActive(guildID string, role domain.StaffRole) int {
	count := 0
	for _, s := range r.records {
		if s.GuildID == guildID && s.Role == role && s.IsActive() {
			count++
		}
	}
	return count
}

// reserve mirrors the Postgres occupancy check plus the single Managing Partner index.
func (r *StaffRepository) reserve(guildID string, role domain.StaffRole, limit int) error {
	count := r.countActive(guildID, role)
	if limit > 0 && count >= limit {
		return fmt.Errorf("%w: %s has %d/%d active", apperrors.ErrRoleLimitReached, role, count, limit)
	}
	if role == domain.StaffRoleManagingPartner && count > 0 {
		return fmt.Errorf("%w: staff_single_managing_partner", apperrors.ErrRoleLimitReached)
	}
	return nil
}

func (r *StaffRepository) Create(_ context.Context, staff *domain.Staff, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := staffKey(staff.GuildID, staff.UserID)
	if _, exists := r.records[key]; exists {
		return apperrors.ErrStaffExists
	}
	if staff.Status == domain.StaffStatusActive {
		if err := r.reserve(staff.GuildID, staff.Role, limit); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	staff.ID = uuid.NewString()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	stored := cloneStaff(staff)
	r.records[key] = &stored
	return nil
}

func (r *StaffRepository) ChangeRole(_ context.Context, staff *domain.Staff, record domain.PromotionRecord, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[staffKey(staff.GuildID, staff.UserID)]
	if !ok || stored.Role != record.FromRole || !stored.IsActive() {
		return pgx.ErrNoRows
	}
	if err := r.reserve(staff.GuildID, record.ToRole, limit); err != nil {
		return err
	}
	stored.Role = record.ToRole
	stored.UpdatedAt = time.Now().UTC()
	stored.PromotionHistory = append(stored.PromotionHistory, record)
	*staff = cloneStaff(stored)
	return nil
}

func (r *StaffRepository) Terminate(_ context.Context, staff *domain.Staff, record domain.PromotionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[staffKey(staff.GuildID, staff.UserID)]
	if !ok || stored.Status == domain.StaffStatusTerminated {
		return pgx.ErrNoRows
	}
	stored.Status = domain.StaffStatusTerminated
	stored.UpdatedAt = time.Now().UTC()
	stored.PromotionHistory = append(stored.PromotionHistory, record)
	*staff = cloneStaff(stored)
	return nil
}

func (r *StaffRepository) SetStatus(_ context.Context, staff *domain.Staff, status domain.StaffStatus, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[staffKey(staff.GuildID, staff.UserID)]
	if !ok || stored.Status != staff.Status {
		return pgx.ErrNoRows
	}
	if status == domain.StaffStatusActive {
		if err := r.reserve(staff.GuildID, stored.Role, limit); err != nil {
			return err
		}
	}
	stored.Status = status
	stored.UpdatedAt = time.Now().UTC()
	*staff = cloneStaff(stored)
	return nil
}

func (r *StaffRepository) UpdateDiscordRole(_ context.Context, guildID, userID string, roleID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[staffKey(guildID, userID)]
	if !ok {
		return pgx.ErrNoRows
	}
	if roleID == nil {
		stored.DiscordRoleID = nil
	} else {
		id := *roleID
		stored.DiscordRoleID = &id
	}
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *StaffRepository) History(_ context.Context, staffID string) ([]domain.PromotionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.records {
		if s.ID == staffID {
			return append([]domain.PromotionRecord(nil), s.PromotionHistory...), nil
		}
	}
	return nil, nil
}
