package sessions

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayursutra/therapy-portal/internal/observability/metrics"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

var sessionsTracer = otel.Tracer("therapyportal.internal.sessions")

// Service enforces session lifecycle rules independent of transport. It
// holds no per-request state; all session data lives in the repository.
type Service struct {
	repo          Repository
	logger        *logging.Logger
	metrics       *metrics.SchedulingMetrics
	conflictCheck bool
	loc           *time.Location
}

// Options tune service behavior.
type Options struct {
	// ConflictCheck rejects bookings that overlap a doctor's existing
	// non-cancelled sessions. Off by default: historical deployments
	// accepted double-bookings and some clinics resolve them manually.
	ConflictCheck bool

	// Location interprets day-granularity date filters. Defaults to the
	// server's local zone.
	Location *time.Location
}

// NewService constructs a sessions service.
func NewService(repo Repository, logger *logging.Logger, m *metrics.SchedulingMetrics, opts Options) *Service {
	if repo == nil {
		panic("sessions: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:          repo,
		logger:        logger,
		metrics:       m,
		conflictCheck: opts.ConflictCheck,
		loc:           loc,
	}
}

// Create books a new session with status scheduled. The caller's role
// decides which party is implicit: patients book themselves with a doctor
// from the body, doctors book a patient from the body.
func (s *Service) Create(ctx context.Context, callerID, callerRole string, req *CreateSessionRequest) (*Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions.create",
		trace.WithAttributes(attribute.String("therapy.type", req.TherapyType)))
	defer span.End()
	started := time.Now()

	// Work on a copy; the handler keeps ownership of the request body.
	body := *req
	switch callerRole {
	case RolePatient:
		body.PatientID = callerID
	case RoleDoctor:
		body.DoctorID = callerID
	default:
		// No role, no implicit party. Trusting both body ids would let the
		// caller book on behalf of arbitrary users.
		return nil, ErrUnknownRole
	}

	start, end, verrs := body.Validate()
	if len(verrs) > 0 {
		return nil, verrs
	}

	if s.conflictCheck {
		overlap, err := s.repo.HasOverlap(ctx, body.Doctor(), start, end)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if overlap {
			s.metrics.ObserveConflict()
			s.logger.Info("booking rejected: slot conflict",
				"doctor_id", body.Doctor(), "start_time", start)
			return nil, ErrSlotConflict
		}
	}

	session := &Session{
		PatientID:   body.PatientID,
		DoctorID:    body.Doctor(),
		TherapyType: body.TherapyType,
		StartTime:   start,
		EndTime:     end,
		Status:      StatusScheduled,
		Notes:       body.Notes,
	}
	created, err := s.repo.Create(ctx, session)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveCreated(created.TherapyType, time.Since(started).Seconds())
	s.logger.Info("session booked",
		"session_id", created.ID,
		"patient_id", created.PatientID,
		"doctor_id", created.DoctorID,
		"therapy_type", created.TherapyType,
		"start_time", created.StartTime,
	)
	return created, nil
}

// Transition moves a session into a terminal state. Completion is reserved
// for the conducting doctor; cancellation is open to either owning party,
// matched on the caller's role. Unowned sessions surface as not found.
func (s *Service) Transition(ctx context.Context, id, callerID, callerRole string, action Action) (*Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions.transition",
		trace.WithAttributes(attribute.String("session.action", string(action))))
	defer span.End()

	status, ok := action.StatusFor()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	var owner OwnerFilter
	switch {
	case action == ActionComplete:
		owner = OwnerFilter{DoctorID: callerID}
	case callerRole == RoleDoctor:
		owner = OwnerFilter{DoctorID: callerID}
	default:
		owner = OwnerFilter{PatientID: callerID}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, owner, status)
	if err != nil {
		s.metrics.ObserveTransition(string(action), "error")
		if err != ErrSessionNotFound {
			span.RecordError(err)
		}
		return nil, err
	}

	s.metrics.ObserveTransition(string(action), "ok")
	s.logger.Info("session transitioned",
		"session_id", updated.ID, "action", action, "status", updated.Status)
	return updated, nil
}

// UpdateProgress sets the doctor-editable treatment fields.
func (s *Service) UpdateProgress(ctx context.Context, id, doctorID string, req *UpdateProgressRequest) (*Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions.update_progress")
	defer span.End()

	if verrs := req.Validate(); len(verrs) > 0 {
		return nil, verrs
	}
	updated, err := s.repo.UpdateTreatment(ctx, id, doctorID, req)
	if err != nil {
		if err != ErrSessionNotFound {
			span.RecordError(err)
		}
		return nil, err
	}
	s.logger.Info("session progress updated", "session_id", updated.ID, "doctor_id", doctorID)
	return updated, nil
}

// List returns the caller's sessions ascending by start time, optionally
// restricted to one calendar day (YYYY-MM-DD) in the service's zone.
func (s *Service) List(ctx context.Context, callerID, callerRole, date string) ([]*Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions.list",
		trace.WithAttributes(attribute.String("caller.role", callerRole)))
	defer span.End()

	filter := ListFilter{}
	switch callerRole {
	case RoleDoctor:
		filter.DoctorID = callerID
	default:
		filter.PatientID = callerID
	}

	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			return nil, ValidationErrors{}.Add("date", "date must be formatted YYYY-MM-DD")
		}
		// End of the calendar day, not start+24h: DST-transition days are
		// 23 or 25 hours long in the configured zone.
		from := day
		to := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.From = &from
		filter.To = &to
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return items, nil
}
