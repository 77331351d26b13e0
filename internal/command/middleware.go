package command

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/observability"
	"github.com/spec-kit/firm-ops/internal/repository"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// Recover turns a panicking handler into an internal error.
func Recover(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (resp *Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("command panicked",
						zap.String("command", req.Key()),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
					resp, err = nil, apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}

// Logging logs every command with its latency and outcome.
func Logging(logger *zap.Logger, metrics *observability.Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("command", req.Key()),
				zap.String("guild_id", req.Permission.GuildID),
				zap.String("user_id", req.Permission.UserID),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				de := apperrors.ToDomainError(err)
				metrics.RecordError("command:"+req.Key(), "COMMAND", de.Code)
				if de.HTTPStatus >= 500 {
					logger.Error("command failed", append(fields, zap.Error(err))...)
				} else {
					logger.Info("command rejected", append(fields, zap.String("code", de.Code), zap.String("reason", de.Message))...)
				}
				return resp, err
			}
			logger.Info("command executed", fields...)
			return resp, nil
		}
	}
}

// Validate rejects commands whose parameters break the declarative rule table
// before any handler or repository is reached. Business and cross-entity rules
// run inside the services.
func Validate(v *validation.CommandValidator) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (*Response, error) {
			res := v.ValidateCommand(req.Entity, req.Operation, req.Params)
			if !res.Valid {
				return &Response{Message: res.ErrorMessage(), Validation: &res},
					apperrors.NewValidationError(res.ErrorMessage(), map[string]any{"issues": res.Issues})
			}
			return next(ctx, req)
		}
	}
}

// Audit appends a command_executed entry for every successful command.
func Audit(repo repository.AuditLogRepository, logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil || repo == nil {
				return resp, err
			}
			entry := &domain.AuditEntry{
				ID:       uuid.NewString(),
				GuildID:  req.Permission.GuildID,
				Action:   domain.AuditCommandExecuted,
				ActorID:  req.Permission.UserID,
				TargetID: req.String("user_id"),
				Details: map[string]any{
					"command": req.Key(),
					"params":  req.Params,
				},
				CreatedAt: time.Now().UTC(),
			}
			if auditErr := repo.LogAction(ctx, entry); auditErr != nil {
				logger.Error("command audit failed", zap.String("command", req.Key()), zap.Error(auditErr))
			}
			return resp, nil
		}
	}
}
