// Package memory provides process-local repositories used when no database is
// configured and in tests.
package memory

// Store groups one instance of every repository.
type Store struct {
	Staff        *StaffRepository
	Cases        *CaseRepository
	Jobs         *JobRepository
	Applications *ApplicationRepository
	Audit        *AuditLogRepository
}

func NewStore() *Store {
	return &Store{
		Staff:        NewStaffRepository(),
		Cases:        NewCaseRepository(),
		Jobs:         NewJobRepository(),
		Applications: NewApplicationRepository(),
		Audit:        NewAuditLogRepository(),
	}
}
