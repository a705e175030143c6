package driver

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type countingTicker struct {
	calls atomic.Int32
	err   error
}

func (c *countingTicker) Tick(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestDriver_Tick(t *testing.T) {
	tests := map[string]struct {
		errs   []error
		expErr string
	}{
		"all succeed": {
			errs: []error{nil, nil},
		},
		"first failure reported": {
			errs:   []error{fmt.Errorf("flush failed"), fmt.Errorf("battle failed")},
			expErr: "flush failed",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var tickers []Ticker
			var counters []*countingTicker
			for _, err := range tt.errs {
				c := &countingTicker{err: err}
				counters = append(counters, c)
				tickers = append(tickers, c)
			}

			err := NewDriver("test", tickers).Tick(context.Background())
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for i, c := range counters {
				testutil.AssertEqual(t, fmt.Sprintf("ticker %d calls", i), c.calls.Load(), int32(1))
			}
		})
	}
}

func TestDriver_StartKeepsTickingAfterFailure(t *testing.T) {
	c := &countingTicker{err: fmt.Errorf("always failing")}
	d := NewDriver("test", []Ticker{c}, WithTickLength(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	deadline := time.After(5 * time.Second)
	for c.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("driver stopped ticking after %d calls", c.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
