package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/persistence"
	"github.com/spec-kit/firm-ops/internal/platform"
)

// partnerAlias is matched to Senior Partner when no role carries the full label.
const partnerAlias = "partner"

// RoleMap is the mapping between ranks and platform roles for one guild.
type RoleMap struct {
	GuildID  string
	byRank   map[domain.StaffRole]platform.Role
	byRoleID map[string]domain.StaffRole
}

// RoleMapSnapshot is the cacheable form of a RoleMap.
type RoleMapSnapshot struct {
	GuildID string                      `json:"guild_id"`
	Roles   map[domain.StaffRole]string `json:"roles"`
	Names   map[domain.StaffRole]string `json:"names"`
}

// BuildRoleMap matches guild role names against the canonical rank labels,
// ignoring case. The first matching role wins for each rank.
func BuildRoleMap(guildID string, roles []platform.Role) *RoleMap {
	m := &RoleMap{
		GuildID:  guildID,
		byRank:   map[domain.StaffRole]platform.Role{},
		byRoleID: map[string]domain.StaffRole{},
	}
	var alias *platform.Role
	for i := range roles {
		name := strings.TrimSpace(roles[i].Name)
		if role, ok := domain.ParseStaffRole(name); ok {
			if _, taken := m.byRank[role]; !taken {
				m.set(role, roles[i])
			}
			continue
		}
		if alias == nil && strings.EqualFold(name, partnerAlias) {
			alias = &roles[i]
		}
	}
	if _, ok := m.byRank[domain.StaffRoleSeniorPartner]; !ok && alias != nil {
		m.set(domain.StaffRoleSeniorPartner, *alias)
	}
	return m
}

func (m *RoleMap) set(rank domain.StaffRole, role platform.Role) {
	m.byRank[rank] = role
	m.byRoleID[role.ID] = rank
}

// RoleFor returns the platform role for rank.
func (m *RoleMap) RoleFor(rank domain.StaffRole) (platform.Role, bool) {
	if m == nil {
		return platform.Role{}, false
	}
	r, ok := m.byRank[rank]
	return r, ok
}

// RankOf returns the rank a platform role represents.
func (m *RoleMap) RankOf(roleID string) (domain.StaffRole, bool) {
	if m == nil {
		return "", false
	}
	r, ok := m.byRoleID[roleID]
	return r, ok
}

// Held returns the hierarchy mappings among roleIDs, highest rank first.
func (m *RoleMap) Held(roleIDs []string) []domain.RoleMapping {
	var out []domain.RoleMapping
	for _, id := range roleIDs {
		rank, ok := m.RankOf(id)
		if !ok {
			continue
		}
		out = append(out, domain.RoleMapping{RoleID: id, RoleName: m.byRank[rank].Name, Staff: rank})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level() > out[j].Level() })
	return out
}

// Len returns how many ranks are mapped.
func (m *RoleMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byRank)
}

// Snapshot returns the cacheable form of m.
func (m *RoleMap) Snapshot() RoleMapSnapshot {
	snap := RoleMapSnapshot{
		GuildID: m.GuildID,
		Roles:   map[domain.StaffRole]string{},
		Names:   map[domain.StaffRole]string{},
	}
	for rank, role := range m.byRank {
		snap.Roles[rank] = role.ID
		snap.Names[rank] = role.Name
	}
	return snap
}

// RoleMapFromSnapshot restores a cached mapping.
func RoleMapFromSnapshot(snap RoleMapSnapshot) *RoleMap {
	m := &RoleMap{
		GuildID:  snap.GuildID,
		byRank:   map[domain.StaffRole]platform.Role{},
		byRoleID: map[string]domain.StaffRole{},
	}
	for rank, id := range snap.Roles {
		m.set(rank, platform.Role{ID: id, Name: snap.Names[rank]})
	}
	return m
}

// RoleMapRegistry owns one RoleMap per guild. Maps are built on first use and
// reused until refreshed.
type RoleMapRegistry struct {
	mu     sync.Mutex
	client platform.Client
	cache  *persistence.Cache[RoleMapSnapshot]
	maps   map[string]*RoleMap
	logger *zap.Logger
}

// NewRoleMapRegistry creates a registry. cache may be nil.
func NewRoleMapRegistry(client platform.Client, cache *persistence.Cache[RoleMapSnapshot], logger *zap.Logger) *RoleMapRegistry {
	return &RoleMapRegistry{client: client, cache: cache, maps: map[string]*RoleMap{}, logger: logger}
}

// Get returns the mapping for guildID, building it when absent.
func (r *RoleMapRegistry) Get(ctx context.Context, guildID string) (*RoleMap, error) {
	r.mu.Lock()
	m, ok := r.maps[guildID]
	r.mu.Unlock()
	if ok {
		return m, nil
	}

	if snap, err := r.cache.Get(ctx, guildID); err == nil {
		m = RoleMapFromSnapshot(*snap)
	} else {
		if !errors.Is(err, persistence.ErrCacheMiss) {
			r.logger.Warn("role map cache read failed", zap.String("guild_id", guildID), zap.Error(err))
		}
		return r.Refresh(ctx, guildID)
	}

	r.mu.Lock()
	r.maps[guildID] = m
	r.mu.Unlock()
	return m, nil
}

// Refresh rebuilds the mapping from the guild's current roles.
func (r *RoleMapRegistry) Refresh(ctx context.Context, guildID string) (*RoleMap, error) {
	if r.client == nil {
		return nil, errors.New("chat platform is not configured")
	}
	roles, err := r.client.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	m := BuildRoleMap(guildID, roles)
	if m.Len() < len(domain.AllStaffRoles()) {
		r.logger.Warn("guild is missing hierarchy roles",
			zap.String("guild_id", guildID),
			zap.Int("mapped", m.Len()))
	}
	if err := r.cache.Set(ctx, guildID, m.Snapshot()); err != nil {
		r.logger.Warn("role map cache write failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	r.mu.Lock()
	r.maps[guildID] = m
	r.mu.Unlock()
	return m, nil
}

// Warm builds mappings for guildIDs, logging failures.
func (r *RoleMapRegistry) Warm(ctx context.Context, guildIDs []string) {
	for _, id := range guildIDs {
		if _, err := r.Refresh(ctx, id); err != nil {
			r.logger.Warn("role map warmup failed", zap.String("guild_id", id), zap.Error(err))
		}
	}
}
