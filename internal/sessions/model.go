// Package sessions implements the therapy-session scheduling domain:
// booking, status transitions, and calendar queries.
package sessions

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a session. Completed and cancelled are
// terminal; no route transitions out of them.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Roles asserted by the identity provider.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// TherapyTypes is the fixed set of bookable Panchakarma modalities.
var TherapyTypes = []string{
	"Abhyanga",
	"Shirodhara",
	"Nasya",
	"Basti",
	"Swedana",
	"Panchakarma",
}

// IsValidTherapyType reports whether t names a known modality.
func IsValidTherapyType(t string) bool {
	for _, known := range TherapyTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	// Duration bounds in minutes for duration-based bookings.
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 180
	DefaultDurationMinutes = 60
)

// Session is one therapy appointment between a patient and a doctor.
// PatientID, DoctorID and TherapyType are set at creation and never
// reassigned.
type Session struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patientId"`
	DoctorID    string     `json:"doctorId"`
	TherapyType string     `json:"therapyType"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	FollowUp    *time.Time `json:"followUp,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateSessionRequest is the booking request body. Exactly one of the two
// parties is implicit from the caller's claim; the other comes from the
// body. TherapistID is a legacy alias for DoctorID kept for older
// dashboard builds.
type CreateSessionRequest struct {
	PatientID   string `json:"patientId,omitempty"`
	DoctorID    string `json:"doctorId,omitempty"`
	TherapistID string `json:"therapistId,omitempty"`
	TherapyType string `json:"therapyType"`
	StartTime   string `json:"startTime"`
	Duration    int    `json:"duration,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Doctor returns the doctor id, resolving the legacy alias.
func (r *CreateSessionRequest) Doctor() string {
	if r.DoctorID != "" {
		return r.DoctorID
	}
	return r.TherapistID
}

// Validate checks structural constraints and resolves the session window.
// It returns the parsed start/end times on success, or ValidationErrors
// listing every failed field.
func (r *CreateSessionRequest) Validate() (start, end time.Time, errs ValidationErrors) {
	if strings.TrimSpace(r.PatientID) == "" {
		errs = errs.Add("patientId", "patientId is required")
	}
	if strings.TrimSpace(r.Doctor()) == "" {
		errs = errs.Add("doctorId", "doctorId is required")
	}
	if !IsValidTherapyType(r.TherapyType) {
		errs = errs.Add("therapyType", "therapyType must be one of "+strings.Join(TherapyTypes, ", "))
	}

	start, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		errs = errs.Add("startTime", "startTime must be a valid RFC 3339 timestamp")
		return time.Time{}, time.Time{}, errs
	}

	duration := r.Duration
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	if duration < MinDurationMinutes || duration > MaxDurationMinutes {
		errs = errs.Add("duration", "duration must be between 15 and 180 minutes")
		return start, time.Time{}, errs
	}

	if r.EndTime != "" {
		end, err = time.Parse(time.RFC3339, r.EndTime)
		if err != nil {
			errs = errs.Add("endTime", "endTime must be a valid RFC 3339 timestamp")
			return start, time.Time{}, errs
		}
		if !end.After(start) {
			errs = errs.Add("endTime", "endTime must be after startTime")
			return start, time.Time{}, errs
		}
		if r.Duration != 0 && !end.Equal(start.Add(time.Duration(r.Duration)*time.Minute)) {
			errs = errs.Add("endTime", "endTime disagrees with startTime + duration")
			return start, time.Time{}, errs
		}
	} else {
		end = start.Add(time.Duration(duration) * time.Minute)
	}

	return start, end, errs
}

// UpdateProgressRequest mutates the doctor-editable treatment fields.
type UpdateProgressRequest struct {
	Notes    string     `json:"notes,omitempty"`
	Progress *int       `json:"progress,omitempty"`
	FollowUp *time.Time `json:"followUp,omitempty"`
}

// Validate checks the progress percentage bounds.
func (r *UpdateProgressRequest) Validate() ValidationErrors {
	var errs ValidationErrors
	if r.Progress != nil && (*r.Progress < 0 || *r.Progress > 100) {
		errs = errs.Add("progress", "progress must be between 0 and 100")
	}
	if r.Progress == nil && r.FollowUp == nil && strings.TrimSpace(r.Notes) == "" {
		errs = errs.Add("", "at least one of notes, progress or followUp is required")
	}
	return errs
}

// Action is a requested status transition.
type Action string

const (
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// StatusFor maps an action to the resulting terminal status.
func (a Action) StatusFor() (Status, bool) {
	switch a {
	case ActionComplete:
		return StatusCompleted, true
	case ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}
