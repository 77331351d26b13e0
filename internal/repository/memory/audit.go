package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/repository"
)

// AuditLogRepository is an append-only in-memory audit trail.
type AuditLogRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

var _ repository.AuditLogRepository = (*AuditLogRepository)(nil)

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) LogAction(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// ListByGuild returns the newest entries first.
func (r *AuditLogRepository) ListByGuild(_ context.Context, guildID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].GuildID == guildID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *AuditLogRepository) ListByTarget(_ context.Context, guildID, targetID string) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.GuildID == guildID && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}
