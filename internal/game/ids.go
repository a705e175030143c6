package game

import (
	"strconv"

	"github.com/google/uuid"
)

// UserID is an account id assigned by the account service.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ObjectID identifies a space object in the world.
type ObjectID int64

func (id ObjectID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// BattleID identifies a battle.
type BattleID uuid.UUID

func NewBattleID() BattleID {
	return BattleID(uuid.New())
}

func (id BattleID) String() string {
	return uuid.UUID(id).String()
}

func (id BattleID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *BattleID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// MessageID identifies a message.
type MessageID uuid.UUID

func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

func (id MessageID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *MessageID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
