package models

import "time"

// EnrollmentStatus classifies a school's enrollment for a point in time. The
// set is closed: status derivation switches over it exhaustively so a new
// status cannot silently fall through to a default label.
type EnrollmentStatus string

const (
	StatusNotEnrolled       EnrollmentStatus = "NOT_ENROLLED"
	StatusOptedOut          EnrollmentStatus = "OPTED_OUT"
	StatusPendingNextYear   EnrollmentStatus = "PENDING_NEXT_YEAR"
	StatusEnrolledFirstYear EnrollmentStatus = "ENROLLED_FIRST_YEAR"
	StatusEnrolledAnchoring EnrollmentStatus = "ENROLLED_ANCHORING"
)

// Label returns the Danish display label used by the admin UI.
func (s EnrollmentStatus) Label() string {
	switch s {
	case StatusNotEnrolled:
		return "Ikke tilmeldt"
	case StatusOptedOut:
		return "Frameldt"
	case StatusPendingNextYear:
		return "Tilmeldt (næste skoleår)"
	case StatusEnrolledFirstYear:
		return "Tilmeldt (ny)"
	case StatusEnrolledAnchoring:
		return "Tilmeldt (forankring)"
	}
	return string(s)
}

// EnrollmentEventType identifies a transition in the enrollment history.
type EnrollmentEventType string

const (
	EventEnrolled  EnrollmentEventType = "ENROLLED"
	EventActivated EnrollmentEventType = "ACTIVATED"
	EventOptedOut  EnrollmentEventType = "OPTED_OUT"
	EventReset     EnrollmentEventType = "RESET"
)

// EnrollmentEvent is one entry of a school's append-only enrollment history.
// The history exists for audit display only; status derivation never reads it.
type EnrollmentEvent struct {
	ID        string              `db:"id" json:"id"`
	SchoolID  string              `db:"school_id" json:"school_id"`
	Type      EnrollmentEventType `db:"event_type" json:"event_type"`
	Date      time.Time           `db:"event_date" json:"event_date"`
	Actor     string              `db:"actor" json:"actor"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
}

// EnrollmentRecord is the per-school enrollment state. One record exists for
// the school's whole lifetime; re-enrollment after a withdrawal mutates it
// rather than replacing it, so the audit trail persists.
//
// Invariants: ActiveFrom is nil iff EnrolledAt is nil; OptedOutAt, when set,
// is never before EnrolledAt.
type EnrollmentRecord struct {
	SchoolID   string     `json:"school_id"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
	ActiveFrom *time.Time `json:"active_from,omitempty"`
	OptedOutAt *time.Time `json:"opted_out_at,omitempty"`
	// Version guards concurrent writes: saves compare-and-swap on it so two
	// operators acting on the same school cannot lose an update.
	Version int               `json:"version"`
	History []EnrollmentEvent `json:"history,omitempty"`
}

// SeatCategory is the entitlement tier a school holds for a school year.
type SeatCategory string

const (
	SeatCategoryFirstYear SeatCategory = "FIRST_YEAR"
	SeatCategoryAnchoring SeatCategory = "ANCHORING"
	SeatCategoryNone      SeatCategory = "NONE"
)

// SeatEntitlement is the derived seat allocation of a school for one school
// year. It is recomputed on every query and never persisted: signups change
// continuously and a cached value would go stale.
type SeatEntitlement struct {
	SchoolYear string       `json:"school_year"`
	Category   SeatCategory `json:"category"`
	FreeSeats  int          `json:"free_seats"`
	UsedSeats  int          `json:"used_seats"`
	// ExtraSeats is how many used seats exceed the free allocation; they are
	// owed on an invoice rather than tracked as a standing balance.
	ExtraSeats int `json:"extra_seats"`
}
