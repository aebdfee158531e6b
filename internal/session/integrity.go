package session

import (
	"context"

	"github.com/studywise/studywise-go/internal/model"
)

// ObserveViolation records one advisory integrity signal (tab switch,
// back-navigation, refresh attempt) delivered by the host. Signals are only
// accepted while the attempt is active; the subscription is effectively armed
// by Start and disarmed when the session leaves InProgress.
//
// Each accepted signal is surfaced through the OnViolation hook and forwarded
// to the backend best-effort. Violations never force a submission on their
// own unless a violation limit was configured, in which case reaching the
// limit escalates through the same single-flight guard as the timeout path.
//
// Returns true if the signal was recorded.
func (s *Session) ObserveViolation(kind model.ViolationKind, detail string) bool {
	s.mu.Lock()
	if s.closed || !s.state.active() {
		s.mu.Unlock()
		return false
	}

	v := model.Violation{Kind: kind, OccurredAt: s.now(), Detail: detail}
	s.violations = append(s.violations, v)
	count := len(s.violations)
	onViolation := s.hooks.OnViolation
	escalate := s.violationLim > 0 && count >= s.violationLim && !s.submitInitiated
	s.mu.Unlock()

	s.log.Warn().
		Str("exam_id", s.examID).
		Str("kind", string(kind)).
		Int("count", count).
		Msg("integrity violation observed")

	if onViolation != nil {
		onViolation(v, count)
	}

	// Advisory delivery to the backend must never block or fail the attempt.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
		defer cancel()
		if err := s.backend.ReportViolation(ctx, s.examID, v); err != nil {
			s.log.Debug().Err(err).Msg("violation report dropped")
		}
	}()

	if escalate {
		s.autoSubmit(AutoSubmitViolationLimit)
	}
	return true
}

// Violations returns a copy of the violations observed so far this attempt.
func (s *Session) Violations() []model.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Violation, len(s.violations))
	copy(out, s.violations)
	return out
}
