package game

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

// MessageKind classifies a message. Only battle events are collapsed into
// summaries.
type MessageKind string

const (
	MessageBattleEvent  MessageKind = "battle_event"
	MessageBattleResult MessageKind = "battle_result"
	MessageLevelUp      MessageKind = "level_up"
	MessageSummary      MessageKind = "summary"
	MessageSystem       MessageKind = "system"
)

// Message is a notification in a user's feed. Read is its only mutable field.
type Message struct {
	ID          MessageID   `json:"id"`
	RecipientID UserID      `json:"recipient_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Read        bool        `json:"read"`
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text"`
}

// NewMessage creates an unread message.
func NewMessage(to UserID, kind MessageKind, text string, now time.Time) *Message {
	return &Message{
		ID:          NewMessageID(),
		RecipientID: to,
		CreatedAt:   now,
		Kind:        kind,
		Text:        text,
	}
}

func (m *Message) Validate() error {
	el := errors.NewErrorList()

	if m.RecipientID <= 0 {
		el.Add(fmt.Errorf("recipient must be set"))
	}
	if m.Kind == "" {
		el.Add(fmt.Errorf("kind must be set"))
	}
	if m.Text == "" {
		el.Add(fmt.Errorf("text must be set"))
	}

	return el.Err()
}
