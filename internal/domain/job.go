package domain

import "time"

// Job is an open position for one rank.
type Job struct {
	ID          string
	GuildID     string
	Title       string
	Description string
	StaffRole   StaffRole
	LimitCount  int
	IsOpen      bool
	PostedBy    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ApplicationStatus enumerates review states for job applications.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application is a candidate's request to fill a Job.
type Application struct {
	ID             string
	GuildID        string
	JobID          string
	ApplicantID    string
	Username       string
	Answers        map[string]string
	Status         ApplicationStatus
	ReviewedBy     *string
	ReviewedAt     *time.Time
	RejectionNotes string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
