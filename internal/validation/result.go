package validation

import (
	"fmt"
	"strings"
)

// Severity classifies an issue. Only SeverityError blocks an operation.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue codes.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeRoleLimitExceeded      = "ROLE_LIMIT_EXCEEDED"
	CodeCaseLimitExceeded      = "CLIENT_CASE_LIMIT_EXCEEDED"
	CodeCaseLimitApproaching   = "CLIENT_CASE_LIMIT_APPROACHING"
	CodeStaffNotFound          = "STAFF_NOT_FOUND"
	CodeStaffInactive          = "STAFF_INACTIVE"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSIONS"
	CodeInsufficientAuthority  = "INSUFFICIENT_AUTHORITY"
	CodeInvalidRole            = "INVALID_ROLE"
	CodeInvalidPromotion       = "INVALID_PROMOTION"
	CodeInvalidDemotion        = "INVALID_DEMOTION"
	CodeManagerHasActiveCases  = "MANAGER_HAS_ACTIVE_CASES"
	CodeHierarchyGap           = "HIERARCHY_GAP"
	CodeDuplicateSingleton     = "DUPLICATE_MANAGING_PARTNER"
	CodeNoManagement           = "NO_MANAGEMENT_STAFF"
	CodeCaseNotFound           = "CASE_NOT_FOUND"
	CodeInvalidLawyer          = "INVALID_ASSIGNED_LAWYER"
	CodeInvalidLeadAttorney    = "INVALID_LEAD_ATTORNEY"
	CodeLeadNotManagement      = "LEAD_ATTORNEY_NOT_MANAGEMENT"
	CodeJobNotFound            = "JOB_NOT_FOUND"
	CodeInactiveJobPoster      = "INACTIVE_JOB_POSTER"
	CodePendingOnClosedJob     = "PENDING_APPLICATION_ON_CLOSED_JOB"
	CodeJobLimitMismatch       = "JOB_LIMIT_MISMATCH"
	CodeActiveCaseAssignments  = "ACTIVE_CASE_ASSIGNMENTS"
	CodeLeadAttorneyOnCases    = "LEAD_ATTORNEY_ON_CASES"
	CodeCaseClosing            = "CASE_CLOSING"
	CodeOrphanedCase           = "CASE_WITHOUT_LAWYERS"
	CodeOrphanedApplication    = "APPLICATION_WITHOUT_JOB"
	CodeRequired               = "REQUIRED"
	CodeInvalidType            = "INVALID_TYPE"
	CodeInvalidLength          = "INVALID_LENGTH"
	CodeOutOfRange             = "OUT_OF_RANGE"
	CodePatternMismatch        = "PATTERN_MISMATCH"
	CodeInvalidEnum            = "INVALID_ENUM"
	CodeUsernameUnverified     = "USERNAME_UNVERIFIED"
	CodeSingletonRole          = "SINGLETON_ROLE"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeMissingContext         = "MISSING_CONTEXT_FIELD"
)

// Bypass types reported to callers.
const (
	BypassGuildOwner = "guild_owner"
)

// Issue is a single finding of a validation pass.
type Issue struct {
	Severity   Severity       `json:"severity"`
	Code       string         `json:"code"`
	Field      string         `json:"field,omitempty"`
	Message    string         `json:"message"`
	Bypassable bool           `json:"bypassable,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Result aggregates the issues of one or more validators. Valid is true
// iff Issues holds no error.
type Result struct {
	Valid           bool           `json:"valid"`
	Issues          []Issue        `json:"issues"`
	BypassAvailable bool           `json:"bypass_available"`
	BypassType      string         `json:"bypass_type,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewResult returns an empty valid result.
func NewResult() Result {
	return Result{Valid: true, Issues: []Issue{}}
}

// Failed returns the uniform fail-closed result used when a collaborator errors.
func Failed(what string) Result {
	r := NewResult()
	r.AddError(CodeValidationError, fmt.Sprintf("failed to validate %s", what), nil)
	return r
}

// Add appends an issue and keeps Valid in sync.
func (r *Result) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	if issue.Severity == SeverityError {
		r.Valid = false
	}
}

func (r *Result) AddError(code, message string, ctx map[string]any) {
	r.Add(Issue{Severity: SeverityError, Code: code, Message: message, Context: ctx})
}

func (r *Result) AddWarning(code, message string, ctx map[string]any) {
	r.Add(Issue{Severity: SeverityWarning, Code: code, Message: message, Context: ctx})
}

func (r *Result) AddInfo(code, message string, ctx map[string]any) {
	r.Add(Issue{Severity: SeverityInfo, Code: code, Message: message, Context: ctx})
}

// AddBypassableError appends an error the caller may override when bypass is available.
func (r *Result) AddBypassableError(code, message string, ctx map[string]any) {
	r.Add(Issue{Severity: SeverityError, Code: code, Message: message, Bypassable: true, Context: ctx})
}

// SetMeta records auxiliary output such as counts.
func (r *Result) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
}

// Errors returns the blocking issues.
func (r Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns advisory issues.
func (r Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// Infos returns informational issues.
func (r Result) Infos() []Issue {
	return r.filter(SeverityInfo)
}

// HasCode reports whether any issue carries code.
func (r Result) HasCode(code string) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func (r Result) filter(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// CanProceed reports whether the operation may continue. With bypass requested,
// bypassable errors are ignored when the bypass is available to the caller.
func (r Result) CanProceed(bypass bool) bool {
	if r.Valid {
		return true
	}
	if !bypass || !r.BypassAvailable {
		return false
	}
	for _, issue := range r.Errors() {
		if !issue.Bypassable {
			return false
		}
	}
	return true
}

// ErrorMessage joins error messages for display.
func (r Result) ErrorMessage() string {
	errs := r.Errors()
	msgs := make([]string, 0, len(errs))
	for _, issue := range errs {
		msgs = append(msgs, issue.Message)
	}
	return strings.Join(msgs, "; ")
}

// Merge combines results: valid is the AND, issues concatenate, bypass flags OR.
func Merge(results ...Result) Result {
	merged := NewResult()
	for _, r := range results {
		for _, issue := range r.Issues {
			merged.Add(issue)
		}
		if !r.Valid {
			merged.Valid = false
		}
		if r.BypassAvailable {
			merged.BypassAvailable = true
			if merged.BypassType == "" {
				merged.BypassType = r.BypassType
			}
		}
		for k, v := range r.Metadata {
			merged.SetMeta(k, v)
		}
	}
	return merged
}
