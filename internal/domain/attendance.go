package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// AttendanceStatus describes how a worker showed up on one day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceHalfDay AttendanceStatus = "half-day"
)

var validAttendanceStatuses = []AttendanceStatus{
	AttendancePresent,
	AttendanceAbsent,
	AttendanceLate,
	AttendanceHalfDay,
}

// AttendanceStatuses returns every accepted status in canonical order.
func AttendanceStatuses() []AttendanceStatus {
	return slices.Clone(validAttendanceStatuses)
}

// ParseAttendanceStatus normalizes raw input into a known status.
func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "half_day", "halfday":
		s = string(AttendanceHalfDay)
	}
	status := AttendanceStatus(s)
	if !slices.Contains(validAttendanceStatuses, status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// AttendanceRecord is the fact that a worker attended (or not) on a date.
// (WorkerID, Date) is the natural key.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	WorkerID   string           `json:"worker_id"`
	Date       Date             `json:"date"`
	Status     AttendanceStatus `json:"status"`
	LunchTaken bool             `json:"lunch_taken"`
	Hours      float64          `json:"hours"`
	Version    int              `json:"version"`
	Note       string           `json:"note,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// AttendanceInput holds values for NewAttendanceRecord.
type AttendanceInput struct {
	ID         string
	WorkerID   string
	Date       Date
	Status     AttendanceStatus
	LunchTaken bool
	Hours      float64
	Note       string
}

// AttendanceRevision preserves one superseded version of an attendance record.
type AttendanceRevision struct {
	AttendanceID string           `json:"attendance_id"`
	Version      int              `json:"version"`
	Status       AttendanceStatus `json:"status"`
	LunchTaken   bool             `json:"lunch_taken"`
	Hours        float64          `json:"hours"`
	Note         string           `json:"note,omitempty"`
	RecordedAt   time.Time        `json:"recorded_at"`
	SupersededAt time.Time        `json:"superseded_at"`
}

// NewAttendanceRecord constructs version 1 of an attendance fact.
func NewAttendanceRecord(in AttendanceInput, now time.Time) (AttendanceRecord, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.WorkerID = strings.TrimSpace(in.WorkerID)
	if in.ID == "" || in.WorkerID == "" {
		return AttendanceRecord{}, ErrInvalidID
	}
	if in.Date.IsZero() {
		return AttendanceRecord{}, ErrInvalidDate
	}
	status, err := ParseAttendanceStatus(string(in.Status))
	if err != nil {
		return AttendanceRecord{}, err
	}
	if !validHours(in.Hours) {
		return AttendanceRecord{}, ErrInvalidHours
	}
	return AttendanceRecord{
		ID:         in.ID,
		WorkerID:   in.WorkerID,
		Date:       in.Date,
		Status:     status,
		LunchTaken: in.LunchTaken,
		Hours:      in.Hours,
		Version:    1,
		Note:       strings.TrimSpace(in.Note),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// AttendanceCorrection describes the replacement values for Correct.
type AttendanceCorrection struct {
	Status     AttendanceStatus
	LunchTaken bool
	Hours      float64
	Note       string
}

// validHours reports whether h is a finite, non-negative hour count.
func validHours(h float64) bool {
	return h >= 0 && !math.IsInf(h, 1)
}

// Correct applies a versioned correction and returns the revision it supersedes.
func (a *AttendanceRecord) Correct(c AttendanceCorrection, now time.Time) (AttendanceRevision, error) {
	status, err := ParseAttendanceStatus(string(c.Status))
	if err != nil {
		return AttendanceRevision{}, err
	}
	if !validHours(c.Hours) {
		return AttendanceRevision{}, ErrInvalidHours
	}
	note := strings.TrimSpace(c.Note)
	if status == a.Status && c.LunchTaken == a.LunchTaken && c.Hours == a.Hours {
		return AttendanceRevision{}, ErrAttendanceUnchanged
	}
	prev := AttendanceRevision{
		AttendanceID: a.ID,
		Version:      a.Version,
		Status:       a.Status,
		LunchTaken:   a.LunchTaken,
		Hours:        a.Hours,
		Note:         a.Note,
		RecordedAt:   a.UpdatedAt,
		SupersededAt: now.UTC(),
	}
	a.Status = status
	a.LunchTaken = c.LunchTaken
	a.Hours = c.Hours
	a.Note = note
	a.Version++
	a.UpdatedAt = now.UTC()
	return prev, nil
}
