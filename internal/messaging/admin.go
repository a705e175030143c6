package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/multiplier"
)

// Admin request subjects. Replies are JSON AdminReply values.
const (
	SubjectMultiplierSet    = "admin.multiplier.set"
	SubjectMultiplierStatus = "admin.multiplier.status"
	SubjectCachesFlush      = "admin.caches.flush"
	SubjectCachesReset      = "admin.caches.reset"
)

type MultiplierControl interface {
	Set(value, minutes float64) error
	Status() multiplier.Status
}

type CacheControl interface {
	Flush(ctx context.Context, lc *locks.Context) error
	Reset(ctx context.Context, lc *locks.Context) error
}

// SetMultiplierRequest is the body of an admin.multiplier.set request.
type SetMultiplierRequest struct {
	Value   float64 `json:"value"`
	Minutes float64 `json:"minutes"`
}

type AdminReply struct {
	Status *multiplier.Status `json:"status,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// AdminResponder answers operator requests for the time multiplier and the
// caches.
type AdminResponder struct {
	server *NatsServer
	mult   MultiplierControl
	caches CacheControl
}

func NewAdminResponder(server *NatsServer, mult MultiplierControl, caches CacheControl) *AdminResponder {
	return &AdminResponder{server: server, mult: mult, caches: caches}
}

// Start serves requests once the server is up and until ctx is done.
func (a *AdminResponder) Start(ctx context.Context) error {
	select {
	case <-a.server.Ready():
	case <-ctx.Done():
		return nil
	}

	handlers := map[string]func([]byte) AdminReply{
		SubjectMultiplierSet:    a.setMultiplier,
		SubjectMultiplierStatus: func([]byte) AdminReply { return a.status() },
		SubjectCachesFlush: func([]byte) AdminReply {
			return a.runCaches(ctx, "flush", a.caches.Flush)
		},
		SubjectCachesReset: func([]byte) AdminReply {
			return a.runCaches(ctx, "reset", a.caches.Reset)
		},
	}

	for subject, h := range handlers {
		unsubscribe, err := a.server.Handle(subject, func(data []byte) []byte {
			return encodeReply(h(data))
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		defer unsubscribe()
	}

	slog.InfoContext(ctx, "admin responder started")
	<-ctx.Done()
	return nil
}

func (a *AdminResponder) setMultiplier(data []byte) AdminReply {
	var req SetMultiplierRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return AdminReply{Error: fmt.Sprintf("decoding request: %v", err)}
	}
	if err := a.mult.Set(req.Value, req.Minutes); err != nil {
		return AdminReply{Error: err.Error()}
	}
	return a.status()
}

func (a *AdminResponder) status() AdminReply {
	st := a.mult.Status()
	return AdminReply{Status: &st}
}

func (a *AdminResponder) runCaches(ctx context.Context, op string, fn func(context.Context, *locks.Context) error) AdminReply {
	if err := fn(ctx, locks.NewContext()); err != nil {
		slog.WarnContext(ctx, "admin cache operation failed", "op", op, "error", err)
		return AdminReply{Error: err.Error()}
	}
	slog.InfoContext(ctx, "admin cache operation", "op", op)
	return AdminReply{}
}

func encodeReply(r AdminReply) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":"encoding reply"}`)
	}
	return data
}
