package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Role is a staff role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
)

// User is the staff profile returned by the backend.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// LoginResult is the login response: a token plus the profile fields.
type LoginResult struct {
	Token string `json:"token"`
	User
}

// Course is a course offered by the institute.
type Course struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// CourseRef is a course reference that the backend sends either populated
// ({"_id":..,"name":..}) or as a bare id string.
type CourseRef struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (r *CourseRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = CourseRef{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = CourseRef{ID: id}
		return nil
	}
	var full struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &full); err != nil {
		return err
	}
	*r = CourseRef{ID: full.ID, Name: full.Name}
	return nil
}

// Student is a roster entry.
type Student struct {
	ID                 string    `json:"_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Course             CourseRef `json:"course"`
	Batch              string    `json:"batch"`
	MockInterviewScore *int      `json:"mockInterviewScore"`
}

// StudentInput is the create payload.
type StudentInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Course string `json:"course"`
	Batch  string `json:"batch"`
}

// StudentUpdate is the update payload; a nil score is sent as null and clears it.
type StudentUpdate struct {
	StudentInput
	MockInterviewScore *int `json:"mockInterviewScore"`
}

// StudentFilter narrows the roster list.
type StudentFilter struct {
	Course string
	Batch  string
}

// MarkStatus is an attendance decision.
type MarkStatus string

const (
	StatusPresent MarkStatus = "present"
	StatusAbsent  MarkStatus = "absent"
)

// Valid reports whether s is present or absent.
func (s MarkStatus) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// SessionStatus is the client-side view of an attendance window.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOpen      SessionStatus = "open"
	SessionExpired   SessionStatus = "expired"
)

// Session is one attendance window identified by its slug.
type Session struct {
	ID          string    `json:"_id"`
	Slug        string    `json:"slug"`
	Course      CourseRef `json:"course"`
	Batch       string    `json:"batch"`
	OpensAt     time.Time `json:"opensAt"`
	ClosesAt    time.Time `json:"closesAt"`
	SessionDate time.Time `json:"sessionDate"`
}

// Status places now against the window [OpensAt, ClosesAt).
func (s Session) Status(now time.Time) SessionStatus {
	switch {
	case !now.Before(s.ClosesAt):
		return SessionExpired
	case now.Before(s.OpensAt):
		return SessionScheduled
	default:
		return SessionOpen
	}
}

// Coords is a geolocation sample.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RosterEntry is a student as seen by the public check-in lookup.
type RosterEntry struct {
	ID          string     `json:"_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	PhoneMasked string     `json:"phoneMasked,omitempty"`
	Status      MarkStatus `json:"status,omitempty"`
}

// SlugLookup is the get-by-slug response. Student is set when a phone was
// supplied and matched; Students carries the roster when the backend sends it.
type SlugLookup struct {
	Session  Session       `json:"session"`
	Student  *RosterEntry  `json:"student,omitempty"`
	Students []RosterEntry `json:"students,omitempty"`
}

// MarkRequest is the attendance submission.
type MarkRequest struct {
	StudentID string     `json:"studentId"`
	Status    MarkStatus `json:"status"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Phone     string     `json:"phone"`
}

// Mark is a recorded attendance decision.
type Mark struct {
	ID       string     `json:"_id"`
	Status   MarkStatus `json:"status"`
	MarkedAt time.Time  `json:"markedAt"`
}

// DailyAttendance is one row of the daily report.
type DailyAttendance struct {
	ID       string     `json:"_id"`
	Student  Student    `json:"student"`
	Session  Session    `json:"session"`
	Status   MarkStatus `json:"status"`
	MarkedAt time.Time  `json:"markedAt"`
}

// DailyReport lists sessions and marks of one day.
type DailyReport struct {
	Sessions    []Session         `json:"sessions"`
	Attendances []DailyAttendance `json:"attendances"`
}

// Percent decodes a percentage sent as a number or a numeric string.
type Percent float64

func (p *Percent) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*p = Percent(f)
	return nil
}

// AnalyticsRow is a per-student attendance summary.
type AnalyticsRow struct {
	ID         string  `json:"_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Batch      string  `json:"batch"`
	Course     string  `json:"course"`
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage Percent `json:"percentage"`
}

// AnalyticsFilter narrows analytics and export by course and date range (YYYY-MM-DD).
type AnalyticsFilter struct {
	CourseID string
	From     string
	To       string
}

// Key decodes an identifier sent as either a JSON string or number.
type Key string

func (k *Key) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}
	*k = Key(b)
	return nil
}

// GridMonth labels one month column.
type GridMonth struct {
	Key   Key    `json:"key"`
	Label string `json:"label"`
}

// MonthCount holds present/absent totals for one month.
type MonthCount struct {
	Month   Key `json:"month"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// GridStudent is a student row of the grid report.
type GridStudent struct {
	ID                 string       `json:"_id"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	Phone              string       `json:"phone"`
	AttendanceByMonth  []MonthCount `json:"attendanceByMonth"`
	MockInterviewScore *int         `json:"mockInterviewScore"`
}

// GridReport is the month-wise grid for one course, batch and year.
type GridReport struct {
	Year     int           `json:"year"`
	Months   []GridMonth   `json:"months"`
	Students []GridStudent `json:"students"`
}

// GridFilter selects a grid.
type GridFilter struct {
	Course string
	Batch  string
	Year   int
}

// ImportResult reports a spreadsheet import.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}
