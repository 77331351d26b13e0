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

// CaseRepository keeps cases in process memory.
type CaseRepository struct {
	mu    sync.RWMutex
	cases map[string]*domain.Case
}

var _ repository.CaseRepository = (*CaseRepository)(nil)

func NewCaseRepository() *CaseRepository {
	return &CaseRepository{cases: map[string]*domain.Case{}}
}

func cloneCase(c *domain.Case) domain.Case {
	out := *c
	out.AssignedLawyerIDs = append([]string{}, c.AssignedLawyerIDs...)
	return out
}

func (r *CaseRepository) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.AssignedLawyerIDs == nil {
		c.AssignedLawyerIDs = []string{}
	}
	stored := cloneCase(c)
	r.cases[c.ID] = &stored
	return nil
}

func (r *CaseRepository) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cases[c.ID]
	if !ok || stored.GuildID != c.GuildID {
		return pgx.ErrNoRows
	}
	c.UpdatedAt = time.Now().UTC()
	updated := cloneCase(c)
	updated.CreatedAt = stored.CreatedAt
	r.cases[c.ID] = &updated
	return nil
}

func (r *CaseRepository) GetByID(_ context.Context, guildID, id string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.cases[id]
	if !ok || stored.GuildID != guildID {
		return nil, pgx.ErrNoRows
	}
	out := cloneCase(stored)
	return &out, nil
}

func (r *CaseRepository) FindByGuild(_ context.Context, guildID string) ([]domain.Case, error) {
	return r.filter(guildID, func(*domain.Case) bool { return true }), nil
}

func (r *CaseRepository) FindByClient(_ context.Context, guildID, clientID string) ([]domain.Case, error) {
	return r.filter(guildID, func(c *domain.Case) bool { return c.ClientID == clientID }), nil
}

func (r *CaseRepository) FindByLawyer(_ context.Context, guildID, userID string) ([]domain.Case, error) {
	return r.filter(guildID, func(c *domain.Case) bool { return c.HasLawyer(userID) }), nil
}

func (r *CaseRepository) FindByLeadAttorney(_ context.Context, guildID, userID string) ([]domain.Case, error) {
	return r.filter(guildID, func(c *domain.Case) bool { return c.IsLeadAttorney(userID) }), nil
}

func (r *CaseRepository) CountActiveByClient(_ context.Context, guildID, clientID string) (int, error) {
	return len(r.filter(guildID, func(c *domain.Case) bool { return c.ClientID == clientID && c.IsActive() })), nil
}

func (r *CaseRepository) filter(guildID string, keep func(*domain.Case) bool) []domain.Case {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Case
	for _, c := range r.cases {
		if c.GuildID == guildID && keep(c) {
			out = append(out, cloneCase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
