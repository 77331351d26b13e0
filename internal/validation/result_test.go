package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	a := NewResult()
	a.AddWarning(CodeHierarchyGap, "gap", nil)
	a.SetMeta("a", 1)

	b := NewResult()
	b.AddBypassableError(CodeRoleLimitExceeded, "full", nil)
	b.BypassAvailable = true
	b.BypassType = BypassGuildOwner
	b.SetMeta("b", 2)

	merged := Merge(a, b)
	assert.False(t, merged.Valid)
	assert.Len(t, merged.Issues, 2)
	assert.True(t, merged.BypassAvailable)
	assert.Equal(t, BypassGuildOwner, merged.BypassType)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged.Metadata)

	empty := Merge()
	assert.True(t, empty.Valid)
	assert.NotNil(t, empty.Issues)
}

func TestCanProceed(t *testing.T) {
	ok := NewResult()
	ok.AddWarning(CodeCaseLimitApproaching, "close to limit", nil)
	assert.True(t, ok.CanProceed(false))

	bypassable := NewResult()
	bypassable.AddBypassableError(CodeRoleLimitExceeded, "full", nil)
	assert.False(t, bypassable.CanProceed(true), "bypass not available")
	bypassable.BypassAvailable = true
	assert.False(t, bypassable.CanProceed(false), "bypass not requested")
	assert.True(t, bypassable.CanProceed(true))

	mixed := Merge(bypassable, func() Result {
		r := NewResult()
		r.AddError(CodeActiveCaseAssignments, "on cases", nil)
		return r
	}())
	assert.False(t, mixed.CanProceed(true))
}

func TestFailedIsFailClosed(t *testing.T) {
	res := Failed("role limit")
	assert.False(t, res.Valid)
	assert.Equal(t, "failed to validate role limit", res.ErrorMessage())
}
