package relay

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys on the topic exchange.
const (
	KeyMessageCreated  = "chat.message.created"
	KeyMessagesRead    = "chat.messages.read"
	KeyPresenceChanged = "chat.presence.changed"
)

const producer = "chatcore"

// Meta describes an emitted event.
type Meta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

// Envelope is the body of every published event.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// MessageCreated is published for each persisted chat message.
type MessageCreated struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	FileURL        string    `json:"fileUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessagesRead is published when a user reads a conversation.
type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// PresenceChanged is published on online/offline transitions.
type PresenceChanged struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

func newEnvelope(eventType string, data any, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Type:     eventType + ".v1",
			Producer: producer,
			Time:     now.UTC(),
		},
		Data: data,
	}
}
