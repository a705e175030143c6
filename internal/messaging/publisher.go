package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-starlane/internal/game"
)

// Subject is the channel a user's feed is published on.
func Subject(id game.UserID) string {
	return fmt.Sprintf("user.%s", id)
}

// NatsPublisher publishes feed messages to each recipient's NATS subject.
type NatsPublisher struct {
	server *NatsServer
}

// NewNatsPublisher wraps a NatsServer for per-user message delivery.
func NewNatsPublisher(server *NatsServer) *NatsPublisher {
	return &NatsPublisher{server: server}
}

func (p *NatsPublisher) Notify(_ context.Context, msg *game.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", msg.ID, err)
	}
	return p.server.Publish(Subject(msg.RecipientID), data)
}
