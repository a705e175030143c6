package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/multiplier"
)

type fakeCaches struct {
	flushErr error
	flushes  chan struct{}
	resets   chan struct{}
}

func (f *fakeCaches) Flush(_ context.Context, lc *locks.Context) error {
	if !lc.Empty() {
		return errors.New("expected a fresh lock context")
	}
	f.flushes <- struct{}{}
	return f.flushErr
}

func (f *fakeCaches) Reset(context.Context, *locks.Context) error {
	f.resets <- struct{}{}
	return nil
}

func startAdmin(t *testing.T, mult MultiplierControl, caches CacheControl) *NatsServer {
	t.Helper()

	s := startServer(t)
	a := NewAdminResponder(s, mult, caches)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Wait until the handlers answer.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := s.Request(SubjectMultiplierStatus, nil, 100*time.Millisecond); err == nil {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("admin responder not ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func request(t *testing.T, s *NatsServer, subject string, body any) AdminReply {
	t.Helper()

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	raw, err := s.Request(subject, data, 5*time.Second)
	if err != nil {
		t.Fatalf("requesting %s: %v", subject, err)
	}
	var reply AdminReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	return reply
}

func TestAdminResponder_Multiplier(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mult := multiplier.NewService(multiplier.WithClock(func() time.Time { return now }))
	caches := &fakeCaches{flushes: make(chan struct{}, 1), resets: make(chan struct{}, 1)}
	s := startAdmin(t, mult, caches)

	tests := map[string]struct {
		req    SetMultiplierRequest
		expErr string
		exp    float64
	}{
		"valid": {
			req: SetMultiplierRequest{Value: 10, Minutes: 5},
			exp: 10,
		},
		"below one": {
			req:    SetMultiplierRequest{Value: 0.5, Minutes: 5},
			expErr: "multiplier must be at least 1",
		},
		"no duration": {
			req:    SetMultiplierRequest{Value: 2, Minutes: 0},
			expErr: "duration must be positive",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reply := request(t, s, SubjectMultiplierSet, tt.req)
			if tt.expErr != "" {
				testutil.AssertEqual(t, "error", reply.Error != "", true)
				testutil.AssertErrorContains(t, errors.New(reply.Error), tt.expErr)
				return
			}
			testutil.AssertEqual(t, "error", reply.Error, "")
			testutil.AssertEqual(t, "multiplier", reply.Status.Multiplier, tt.exp)
			testutil.AssertEqual(t, "remaining", reply.Status.RemainingSeconds, 300.0)
		})
	}

	reply := request(t, s, SubjectMultiplierStatus, nil)
	testutil.AssertEqual(t, "status", reply.Status.Multiplier, 10.0)
}

func TestAdminResponder_Caches(t *testing.T) {
	caches := &fakeCaches{
		flushErr: errors.New("persisting user 7: disk full"),
		flushes:  make(chan struct{}, 1),
		resets:   make(chan struct{}, 1),
	}
	s := startAdmin(t, multiplier.NewService(), caches)

	reply := request(t, s, SubjectCachesFlush, nil)
	testutil.AssertEqual(t, "flush error", reply.Error, "persisting user 7: disk full")
	<-caches.flushes

	reply = request(t, s, SubjectCachesReset, nil)
	testutil.AssertEqual(t, "reset error", reply.Error, "")
	<-caches.resets
}
