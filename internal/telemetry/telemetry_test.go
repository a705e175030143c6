package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestSetup(t *testing.T) {
	tests := map[string]struct {
		endpoint string
	}{
		"disabled": {
			endpoint: "",
		},
		// A non-routable address, so nothing is exported.
		"enabled": {
			endpoint: "http://192.0.2.1:4318",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), "starlane-test", tt.endpoint)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}

func TestWorker_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker("starlane-test", "").Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not stop")
	}
}
