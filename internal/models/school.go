package models

import "time"

// School is a participating school in the Basal program.
type School struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Address      string     `db:"address" json:"address"`
	Municipality string     `db:"municipality" json:"municipality"`
	EnrolledAt   *time.Time `db:"enrolled_at" json:"enrolled_at,omitempty"`
	ActiveFrom   *time.Time `db:"active_from" json:"active_from,omitempty"`
	OptedOutAt   *time.Time `db:"opted_out_at" json:"opted_out_at,omitempty"`
	Version      int        `db:"version" json:"version"`
	Active       bool       `db:"is_active" json:"is_active"`
	SignupToken  string     `db:"signup_token" json:"-"`
	SignupCode   string     `db:"signup_code" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Record extracts the school's enrollment record without its history. The
// caller attaches events when they are needed.
func (s *School) Record() *EnrollmentRecord {
	return &EnrollmentRecord{
		SchoolID:   s.ID,
		EnrolledAt: s.EnrolledAt,
		ActiveFrom: s.ActiveFrom,
		OptedOutAt: s.OptedOutAt,
		Version:    s.Version,
	}
}

// SchoolFilter provides filters for listing schools.
type SchoolFilter struct {
	Search       string
	Municipality string
	// Status narrows the list to a derived enrollment bucket: enrolled,
	// first_year, anchoring, pending_next_year, never_enrolled, opted_out.
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SchoolStats aggregates enrollment counts for the dashboard.
type SchoolStats struct {
	SchoolYear    string    `json:"school_year"`
	TotalSchools  int       `json:"total_schools"`
	Enrolled      int       `json:"enrolled"`
	FirstYear     int       `json:"first_year"`
	Anchoring     int       `json:"anchoring"`
	PendingNext   int       `json:"pending_next_year"`
	OptedOut      int       `json:"opted_out"`
	NeverEnrolled int       `json:"never_enrolled"`
	GeneratedAt   time.Time `json:"generated_at"`
}
