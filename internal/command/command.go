// Package command dispatches firm commands, whatever transport they arrive on,
// through one middleware chain.
package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/validation"
)

// Request is a transport-neutral command invocation.
type Request struct {
	Entity     string
	Operation  string
	Permission domain.PermissionContext
	Params     map[string]any
}

// Key returns the "entity:operation" name of the command.
func (r Request) Key() string {
	return validation.CommandKey(r.Entity, r.Operation)
}

// Response is the outcome of a command.
type Response struct {
	Message    string             `json:"message"`
	Data       any                `json:"data,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
}

// Handler executes a command.
type Handler func(ctx context.Context, req Request) (*Response, error)

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies middlewares to a handler. The first middleware is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// String returns a string parameter, or "" when absent.
func (r Request) String(key string) string {
	switch v := r.Params[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns a boolean parameter, accepting "true"/"false" strings.
func (r Request) Bool(key string) bool {
	switch v := r.Params[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Bypass reports whether the caller asked to override bypassable limits.
func (r Request) Bypass() bool {
	return r.Bool("bypass")
}

// Int returns an integer parameter or fallback.
func (r Request) Int(key string, fallback int) int {
	switch v := r.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
