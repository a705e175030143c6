package multiplier

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

const DefaultRetention = 24 * time.Hour

// window is a period during which a multiplier applied.
type window struct {
	value float64
	start time.Time
	end   time.Time
}

// Status describes the current multiplier.
type Status struct {
	Multiplier       float64   `json:"multiplier"`
	ActivatedAt      time.Time `json:"activated_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

// Service holds the process-wide game speed. Every elapsed-time computation
// goes through Scaled so a change mid-interval only affects its own share.
type Service struct {
	mu sync.Mutex

	now       func() time.Time
	retention time.Duration

	value       float64
	activatedAt time.Time
	expiresAt   time.Time

	history []window
}

// NewService returns a service running at normal speed.
func NewService(opts ...ServiceOpt) *Service {
	s := &Service{
		now:       time.Now,
		retention: DefaultRetention,
		value:     1,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Set activates value for the given number of minutes, replacing any active
// multiplier from now on.
func (s *Service) Set(value, minutes float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 1 {
		return fmt.Errorf("%w: %v", ErrInvalidMultiplier, value)
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return fmt.Errorf("%w: %v minutes", ErrInvalidDuration, minutes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	if s.value > 1 {
		s.history = append(s.history, window{value: s.value, start: s.activatedAt, end: now})
	}
	s.pruneLocked(now)

	s.value = value
	s.activatedAt = now
	s.expiresAt = now.Add(time.Duration(minutes * float64(time.Minute)))

	slog.Info("time multiplier set", "multiplier", value, "expires_at", s.expiresAt)
	return nil
}

// Multiplier returns the active multiplier, or 1 once it has expired.
func (s *Service) Multiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	return s.value
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	st := Status{Multiplier: s.value}
	if s.value > 1 {
		st.ActivatedAt = s.activatedAt
		st.ExpiresAt = s.expiresAt
		st.RemainingSeconds = s.expiresAt.Sub(now).Seconds()
	}
	return st
}

// Scaled converts the real interval [from, to) into game time, applying each
// multiplier only to the part of the interval it was active for.
func (s *Service) Scaled(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())

	windows := s.history
	if s.value > 1 {
		windows = append(windows[:len(windows):len(windows)], window{value: s.value, start: s.activatedAt, end: s.expiresAt})
	}

	total := float64(to.Sub(from))
	for _, w := range windows {
		start, end := w.start, w.end
		if from.After(start) {
			start = from
		}
		if to.Before(end) {
			end = to
		}
		if !end.After(start) {
			continue
		}
		total += float64(end.Sub(start)) * (w.value - 1)
	}

	return time.Duration(total)
}

func (s *Service) expireLocked(now time.Time) {
	if s.value <= 1 || !now.After(s.expiresAt) {
		return
	}

	s.history = append(s.history, window{value: s.value, start: s.activatedAt, end: s.expiresAt})
	s.pruneLocked(now)

	slog.Info("time multiplier expired", "multiplier", s.value)
	s.value = 1
	s.activatedAt = time.Time{}
	s.expiresAt = time.Time{}
}

func (s *Service) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.retention)
	kept := s.history[:0]
	for _, w := range s.history {
		if w.end.After(cutoff) {
			kept = append(kept, w)
		}
	}
	s.history = kept
}
