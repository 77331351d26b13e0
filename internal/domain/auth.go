package domain

import "time"

// SubjectType differentiates the callers of the operations API.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "OPERATOR"
	SubjectTypeMember   SubjectType = "MEMBER"
)

// Token represents issued access token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	GuildID   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
