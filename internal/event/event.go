package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserCreated     Type = "user.created"
	TypeUserVerified    Type = "user.verified"
	TypeUserSignedIn    Type = "user.signed_in"
	TypeUserSignedOut   Type = "user.signed_out"
	TypeTokenIssued     Type = "token.issued"
	TypePasswordReset   Type = "password.reset"
	TypeMailUndelivered Type = "mail.undelivered"
)

type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id,omitempty"` // user the event is about
}

func New(t Type, actorID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
