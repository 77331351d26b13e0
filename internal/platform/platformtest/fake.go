// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"slices"
	"sync"

	"github.com/spec-kit/firm-ops/internal/platform"
)

// Call records one mutating request made against the fake.
type Call struct {
	Method string
	Target string
	Value  string
}

// Client is a thread-safe fake guild. Fail maps a "method:value" key, such as
// "remove:role-1", to an error returned by that call.
type Client struct {
	mu         sync.Mutex
	Roles      map[string][]platform.Role
	Owners     map[string]string
	members    map[string]map[string]*platform.Member
	overwrites map[string]map[string]platform.Overwrite
	DMs        []Call
	Calls      []Call
	Fail       map[string]error
}

var _ platform.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		Roles:      map[string][]platform.Role{},
		Owners:     map[string]string{},
		members:    map[string]map[string]*platform.Member{},
		overwrites: map[string]map[string]platform.Overwrite{},
		Fail:       map[string]error{},
	}
}

// AddRole registers a guild role.
func (c *Client) AddRole(guildID, roleID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Roles[guildID] = append(c.Roles[guildID], platform.Role{ID: roleID, Name: name})
}

// AddMember registers a guild member holding roleIDs.
func (c *Client) AddMember(guildID, userID string, roleIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members[guildID] == nil {
		c.members[guildID] = map[string]*platform.Member{}
	}
	c.members[guildID][userID] = &platform.Member{UserID: userID, Username: "user-" + userID, RoleIDs: append([]string(nil), roleIDs...)}
}

// MemberRoles returns the roles currently held by a member.
func (c *Client) MemberRoles(guildID, userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.members[guildID][userID]; m != nil {
		return append([]string(nil), m.RoleIDs...)
	}
	return nil
}

// Overwrite returns the overwrite for a member on a channel.
func (c *Client) Overwrite(channelID, userID string) (platform.Overwrite, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ow, ok := c.overwrites[channelID][userID]
	return ow, ok
}

// MutationCount returns the number of mutating calls recorded so far.
func (c *Client) MutationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

func (c *Client) fail(method, value string) error {
	return c.Fail[method+":"+value]
}

func (c *Client) GuildRoles(_ context.Context, guildID string) ([]platform.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("roles", guildID); err != nil {
		return nil, err
	}
	return append([]platform.Role(nil), c.Roles[guildID]...), nil
}

func (c *Client) GuildOwnerID(_ context.Context, guildID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.Owners[guildID]
	if !ok {
		return "", platform.ErrNotFound
	}
	return owner, nil
}

func (c *Client) Member(_ context.Context, guildID, userID string) (*platform.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("member", userID); err != nil {
		return nil, err
	}
	m := c.members[guildID][userID]
	if m == nil {
		return nil, platform.ErrNotFound
	}
	out := *m
	out.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &out, nil
}

func (c *Client) Members(_ context.Context, guildID string) ([]platform.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]platform.Member, 0, len(c.members[guildID]))
	for _, m := range c.members[guildID] {
		cp := *m
		cp.RoleIDs = append([]string(nil), m.RoleIDs...)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b platform.Member) int {
		switch {
		case a.UserID < b.UserID:
			return -1
		case a.UserID > b.UserID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (c *Client) AddMemberRole(_ context.Context, guildID, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("add", roleID); err != nil {
		return err
	}
	m := c.members[guildID][userID]
	if m == nil {
		return platform.ErrNotFound
	}
	c.Calls = append(c.Calls, Call{Method: "add", Target: userID, Value: roleID})
	if !slices.Contains(m.RoleIDs, roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (c *Client) RemoveMemberRole(_ context.Context, guildID, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("remove", roleID); err != nil {
		return err
	}
	m := c.members[guildID][userID]
	if m == nil {
		return platform.ErrNotFound
	}
	c.Calls = append(c.Calls, Call{Method: "remove", Target: userID, Value: roleID})
	m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(id string) bool { return id == roleID })
	return nil
}

func (c *Client) MemberOverwrite(_ context.Context, channelID, userID string) (*platform.Overwrite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ow, ok := c.overwrites[channelID][userID]
	if !ok {
		return nil, nil
	}
	return &ow, nil
}

func (c *Client) SetMemberOverwrite(_ context.Context, channelID, userID string, allow, deny int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("overwrite", channelID); err != nil {
		return err
	}
	if c.overwrites[channelID] == nil {
		c.overwrites[channelID] = map[string]platform.Overwrite{}
	}
	c.Calls = append(c.Calls, Call{Method: "overwrite", Target: userID, Value: channelID})
	c.overwrites[channelID][userID] = platform.Overwrite{TargetID: userID, Allow: allow, Deny: deny}
	return nil
}

func (c *Client) DeleteMemberOverwrite(_ context.Context, channelID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, Call{Method: "delete_overwrite", Target: userID, Value: channelID})
	delete(c.overwrites[channelID], userID)
	return nil
}

func (c *Client) SendDirectMessage(_ context.Context, userID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("dm", userID); err != nil {
		return err
	}
	c.DMs = append(c.DMs, Call{Method: "dm", Target: userID, Value: content})
	return nil
}
