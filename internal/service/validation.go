package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/spec-kit/firm-ops/internal/domain"
	"github.com/spec-kit/firm-ops/internal/validation"
	apperrors "github.com/spec-kit/firm-ops/pkg/errorutil"
)

// Validator runs unified validation for a request.
type Validator interface {
	Validate(ctx context.Context, req validation.Request) (validation.Result, error)
}

// check validates a command and converts a blocking result into a DomainError
// carrying the issues. bypass is honored only when the result allows it.
func check(ctx context.Context, v Validator, pc domain.PermissionContext, entity, operation string, data map[string]any, bypass bool) (validation.Result, error) {
	res, err := v.Validate(ctx, validation.Request{
		EntityType: entity,
		Operation:  operation,
		Permission: pc,
		Data:       data,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingContextField) {
			return res, apperrors.NewValidationError(err.Error(), nil)
		}
		return res, apperrors.NewInternalError(err)
	}
	if res.CanProceed(bypass) {
		return res, nil
	}
	return res, rejection(res)
}

// rejection maps a failed result onto the error taxonomy: role limits and
// authority failures keep their own codes, everything else is a validation error.
func rejection(res validation.Result) error {
	details := map[string]any{
		"issues":           res.Issues,
		"bypass_available": res.BypassAvailable,
	}
	if res.BypassType != "" {
		details["bypass_type"] = res.BypassType
	}
	msg := res.ErrorMessage()
	switch {
	case onlyCodes(res, validation.CodeRoleLimitExceeded):
		return apperrors.NewRoleLimit(msg, details)
	case res.HasCode(validation.CodeInsufficientAuthority) || res.HasCode(validation.CodeInsufficientPermission):
		de := apperrors.ToDomainError(apperrors.NewForbiddenWithBypass(msg, res.BypassAvailable, res.BypassType))
		de.Details["issues"] = res.Issues
		return de
	case onlyCodes(res, validation.CodeStaffNotFound, validation.CodeCaseNotFound, validation.CodeJobNotFound):
		return apperrors.NewDomainError(apperrors.CodeNotFound, msg, http.StatusNotFound, details)
	default:
		return apperrors.NewValidationError(msg, details)
	}
}

func onlyCodes(res validation.Result, codes ...string) bool {
	errs := res.Errors()
	if len(errs) == 0 {
		return false
	}
	for _, issue := range errs {
		found := false
		for _, c := range codes {
			if issue.Code == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
