// Package notify sends best-effort booking confirmation emails to both
// parties of a session.
package notify

import (
	"context"
	"fmt"

	"github.com/ayursutra/therapy-portal/internal/identity"
	"github.com/ayursutra/therapy-portal/internal/sessions"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

const sessionTimeFormat = "Monday, January 2 2006 at 3:04 PM"

// Service resolves party emails through the identity provider and sends
// lifecycle notifications. All failures are logged and swallowed; booking
// never depends on mail delivery.
type Service struct {
	email    EmailSender
	provider identity.Provider
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, provider identity.Provider, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, provider: provider, logger: logger}
}

// SessionBooked notifies both parties of a new booking.
func (s *Service) SessionBooked(ctx context.Context, sess *sessions.Session) {
	subject := fmt.Sprintf("%s session booked", sess.TherapyType)
	body := fmt.Sprintf("Your %s session is booked for %s.",
		sess.TherapyType, sess.StartTime.Format(sessionTimeFormat))
	s.sendToParties(ctx, sess, subject, body)
}

// SessionCancelled notifies both parties of a cancellation.
func (s *Service) SessionCancelled(ctx context.Context, sess *sessions.Session) {
	subject := fmt.Sprintf("%s session cancelled", sess.TherapyType)
	body := fmt.Sprintf("The %s session on %s has been cancelled.",
		sess.TherapyType, sess.StartTime.Format(sessionTimeFormat))
	s.sendToParties(ctx, sess, subject, body)
}

func (s *Service) sendToParties(ctx context.Context, sess *sessions.Session, subject, body string) {
	if s.email == nil || s.provider == nil {
		return
	}
	for _, userID := range []string{sess.PatientID, sess.DoctorID} {
		user, err := s.provider.GetUser(ctx, userID)
		if err != nil {
			s.logger.Warn("notify: could not resolve party", "error", err, "user_id", userID)
			continue
		}
		if user.Email == "" {
			continue
		}
		if err := s.email.Send(ctx, EmailMessage{
			To:      user.Email,
			ToName:  user.Name,
			Subject: subject,
			Body:    body,
		}); err != nil {
			s.logger.Warn("notify: send failed", "error", err, "user_id", userID, "session_id", sess.ID)
		}
	}
}
