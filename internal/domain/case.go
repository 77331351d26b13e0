package domain

import "time"

// CaseStatus enumerates lifecycle states for client cases.
type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusInProgress CaseStatus = "in-progress"
	CaseStatusClosed     CaseStatus = "closed"
)

// CaseResult records how a closed case ended.
type CaseResult string

const (
	CaseResultWin        CaseResult = "win"
	CaseResultLoss       CaseResult = "loss"
	CaseResultSettlement CaseResult = "settlement"
	CaseResultDismissed  CaseResult = "dismissed"
)

// Case is a client matter handled by the firm.
type Case struct {
	ID                string
	GuildID           string
	CaseNumber        string
	ClientID          string
	ClientUsername    string
	Title             string
	Description       string
	Status            CaseStatus
	Priority          string
	AssignedLawyerIDs []string
	LeadAttorneyID    *string
	ChannelID         *string
	Result            *CaseResult
	ResultNotes       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
	ClosedBy          *string
}

// IsActive reports whether the case still occupies the client's case quota.
func (c *Case) IsActive() bool {
	return c != nil && c.Status != CaseStatusClosed
}

// HasLawyer reports whether userID is assigned to the case.
func (c *Case) HasLawyer(userID string) bool {
	for _, id := range c.AssignedLawyerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsLeadAttorney reports whether userID leads the case.
func (c *Case) IsLeadAttorney(userID string) bool {
	return c.LeadAttorneyID != nil && *c.LeadAttorneyID == userID
}
