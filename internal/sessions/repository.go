package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OwnerFilter scopes a mutation to the caller's side of the session.
// Exactly one field is set; the zero value matches nothing.
type OwnerFilter struct {
	PatientID string
	DoctorID  string
}

// ListFilter narrows List results. From/To bound StartTime inclusively.
type ListFilter struct {
	PatientID string
	DoctorID  string
	From      *time.Time
	To        *time.Time
}

// Repository defines the interface for session storage. Every mutation
// targets a single record; implementations need no cross-record
// transactions.
type Repository interface {
	Create(ctx context.Context, s *Session) (*Session, error)
	List(ctx context.Context, f ListFilter) ([]*Session, error)

	// UpdateStatus sets the status of the session matching id and owner in
	// one operation, returning ErrSessionNotFound when nothing matches.
	UpdateStatus(ctx context.Context, id string, owner OwnerFilter, status Status) (*Session, error)

	// UpdateTreatment sets the doctor-editable fields of an owned session.
	UpdateTreatment(ctx context.Context, id, doctorID string, req *UpdateProgressRequest) (*Session, error)

	// HasOverlap reports whether a non-cancelled session for the doctor
	// intersects [start, end).
	HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error)
}

// InMemoryRepository keeps sessions in a mutex-guarded map. It backs tests
// and the no-database development mode.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[string]*Session)}
}

// Create assigns an id and store-managed timestamps, then persists a copy.
func (r *InMemoryRepository) Create(ctx context.Context, s *Session) (*Session, error) {
	now := time.Now().UTC()
	stored := *s
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.mu.Lock()
	r.sessions[stored.ID] = &stored
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// List returns matching sessions ordered ascending by StartTime.
func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0)
	for _, s := range r.sessions {
		if f.PatientID != "" && s.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != "" && s.DoctorID != f.DoctorID {
			continue
		}
		if f.From != nil && s.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && s.StartTime.After(*f.To) {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// UpdateStatus applies the find-one-and-update predicate in memory.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, owner OwnerFilter, status Status) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !owns(s, owner) {
		return nil, ErrSessionNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	copied := *s
	return &copied, nil
}

// UpdateTreatment sets notes/progress/followUp on a doctor-owned session.
func (r *InMemoryRepository) UpdateTreatment(ctx context.Context, id, doctorID string, req *UpdateProgressRequest) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.DoctorID != doctorID {
		return nil, ErrSessionNotFound
	}
	if req.Notes != "" {
		s.Notes = req.Notes
	}
	if req.Progress != nil {
		s.Progress = req.Progress
	}
	if req.FollowUp != nil {
		s.FollowUp = req.FollowUp
	}
	s.UpdatedAt = time.Now().UTC()
	copied := *s
	return &copied, nil
}

// HasOverlap scans for a non-cancelled session intersecting [start, end).
func (r *InMemoryRepository) HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.DoctorID != doctorID || s.Status == StatusCancelled {
			continue
		}
		if s.StartTime.Before(end) && s.EndTime.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func owns(s *Session, owner OwnerFilter) bool {
	switch {
	case owner.PatientID != "":
		return s.PatientID == owner.PatientID
	case owner.DoctorID != "":
		return s.DoctorID == owner.DoctorID
	}
	return false
}
