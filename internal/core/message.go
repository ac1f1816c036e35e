package core

import (
	"time"

	"github.com/vovakirdan/chatcore/internal/store"
)

// Message is the domain model for a chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Kind           store.MessageKind
	FileURL        string
	ReadBy         []string
	CreatedAt      time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           m.Kind,
		FileURL:        m.FileURL,
		ReadBy:         append([]string(nil), m.ReadBy...),
		CreatedAt:      m.CreatedAt,
	}
}
