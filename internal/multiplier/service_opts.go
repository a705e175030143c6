package multiplier

import "time"

type ServiceOpt func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOpt {
	return func(s *Service) {
		s.now = now
	}
}

// WithRetention sets how long expired windows are remembered for splitting
// intervals that started under them.
func WithRetention(d time.Duration) ServiceOpt {
	return func(s *Service) {
		s.retention = d
	}
}
