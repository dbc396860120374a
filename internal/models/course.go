package models

import "time"

// Course is a Basal training session schools send participants to.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartsOn  time.Time `db:"starts_on" json:"starts_on"`
	Location  string    `db:"location" json:"location"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseSignup reserves one seat on a course for a school. A reserved seat
// counts against the school's entitlement even if the attendee never shows up.
type CourseSignup struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	AttendeeName string    `db:"attendee_name" json:"attendee_name"`
	Email        string    `db:"email" json:"email"`
	Attended     *bool     `db:"attended" json:"attended,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SchoolSignup is a signup joined with its course, the shape the school
// detail page lists consumed seats in.
type SchoolSignup struct {
	CourseSignup
	CourseName     string    `db:"course_name" json:"course_name"`
	CourseStartsOn time.Time `db:"course_starts_on" json:"course_starts_on"`
	CourseLocation string    `db:"course_location" json:"course_location"`
}

// SeatUsage is the signup count of one school within a school year.
type SeatUsage struct {
	SchoolID string `db:"school_id" json:"school_id"`
	Count    int    `db:"count" json:"count"`
}
