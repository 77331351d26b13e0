package dto

import "github.com/spec-kit/firm-ops/internal/validation"

// CommandResponse is the body returned by the command endpoints.
type CommandResponse struct {
	Command    string             `json:"command"`
	Message    string             `json:"message"`
	Data       any                `json:"data,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
}

// CommandInfo describes one registered command.
type CommandInfo struct {
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
}
