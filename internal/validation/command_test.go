package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	snowflakeA = "123456789012345678"
	snowflakeB = "223456789012345678"
)

func TestValidateCommandHire(t *testing.T) {
	cv := NewCommandValidator()

	res := cv.ValidateCommand("staff", "hire", map[string]any{
		"user_id":  snowflakeA,
		"username": "Valid_Name",
		"role":     "Paralegal",
	})
	assert.True(t, res.Valid, res.ErrorMessage())
	assert.Empty(t, res.Issues)

	res = cv.ValidateCommand("staff", "hire", map[string]any{
		"user_id":  "42",
		"username": "no spaces allowed",
		"role":     "Intern",
	})
	assert.False(t, res.Valid)
	fields := map[string]string{}
	for _, issue := range res.Errors() {
		fields[issue.Field] = issue.Code
	}
	assert.Equal(t, CodeInvalidType, fields["user_id"])
	assert.Equal(t, CodePatternMismatch, fields["username"])
	assert.Equal(t, CodeInvalidEnum, fields["role"])
}

func TestValidateCommandReportsEveryMissingField(t *testing.T) {
	cv := NewCommandValidator()
	res := cv.ValidateCommand("staff", "hire", map[string]any{"username": "  "})

	var required []string
	for _, issue := range res.Errors() {
		if issue.Code == CodeRequired {
			required = append(required, issue.Field)
		}
	}
	assert.ElementsMatch(t, []string{"user_id", "username", "role"}, required)
}

func TestValidateCommandManagingPartnerNotice(t *testing.T) {
	cv := NewCommandValidator()
	res := cv.ValidateCommand("staff", "hire", map[string]any{
		"user_id":  snowflakeA,
		"username": "boss_man",
		"role":     "Managing Partner",
	})
	assert.True(t, res.Valid)
	require.Len(t, res.Infos(), 1)
	assert.Equal(t, "role", res.Infos()[0].Field)
	assert.Equal(t, CodeSingletonRole, res.Infos()[0].Code)
	assert.False(t, res.HasCode(CodeRoleLimitExceeded))
}

func TestValidateCommandRejectionAdvice(t *testing.T) {
	cv := NewCommandValidator()
	id := "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b"

	res := cv.ValidateCommand("application", "review", map[string]any{
		"application_id": id,
		"decision":       "rejected",
	})
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings(), 1)

	res = cv.ValidateCommand("application", "review", map[string]any{
		"application_id": id,
		"decision":       "rejected",
		"notes":          "not enough experience",
	})
	assert.Empty(t, res.Warnings())
}

func TestValidateCommandNumbersAndDates(t *testing.T) {
	cv := NewCommandValidator()

	assert.True(t, cv.ValidateCommand("audit", "list", map[string]any{"limit": float64(25), "since": "2026-01-31"}).Valid)

	res := cv.ValidateCommand("audit", "list", map[string]any{"limit": 0})
	assert.True(t, res.HasCode(CodeOutOfRange))

	res = cv.ValidateCommand("audit", "list", map[string]any{"limit": "ten"})
	assert.True(t, res.HasCode(CodeInvalidType))

	res = cv.ValidateCommand("audit", "list", map[string]any{"since": "31/01/2026"})
	assert.True(t, res.HasCode(CodeInvalidType))
}

func TestValidateCommandBooleansAndLengths(t *testing.T) {
	cv := NewCommandValidator()

	res := cv.ValidateCommand("staff", "promote", map[string]any{"user_id": snowflakeB, "bypass": "yes"})
	assert.True(t, res.HasCode(CodeInvalidType))

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	res = cv.ValidateCommand("staff", "fire", map[string]any{"user_id": snowflakeB, "reason": string(long)})
	assert.True(t, res.HasCode(CodeInvalidLength))
}

func TestValidateCommandUnknownPasses(t *testing.T) {
	cv := NewCommandValidator()
	assert.False(t, cv.Has("ghost:walk"))
	assert.True(t, cv.ValidateCommand("ghost", "walk", map[string]any{"x": 1}).Valid)

	cv.Register("ghost:walk", RuleSet{"x": {Type: FieldNumber, Required: true}})
	assert.True(t, cv.Has("ghost:walk"))
	assert.False(t, cv.ValidateCommand("ghost", "walk", nil).Valid)
}
