package command

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// Registry maps "entity:operation" names to handlers wrapped in a shared chain.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	middlewares []Middleware
}

// NewRegistry returns a registry applying middlewares to every handler.
func NewRegistry(middlewares ...Middleware) *Registry {
	return &Registry{handlers: map[string]Handler{}, middlewares: middlewares}
}

// Register installs h for entity:operation, replacing any previous handler.
func (r *Registry) Register(entity, operation string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entity+":"+operation] = Chain(h, r.middlewares...)
}

// Execute runs the command named by req.
func (r *Registry) Execute(ctx context.Context, req Request) (*Response, error) {
	r.mu.RLock()
	h, ok := r.handlers[req.Key()]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound("command", map[string]any{"command": req.Key()})
	}
	return h(ctx, req)
}

// Commands lists the registered command names in order.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
