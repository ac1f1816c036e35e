//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_store.go -package=mocks github.com/vovakirdan/chatcore/internal/store Repository
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced conversation or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned when a write is rejected before reaching the database.
	ErrInvalidArgument = errors.New("invalid argument")
)

// MessageKind classifies message content.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	default:
		return false
	}
}

// LastMessage is the denormalised summary kept on a conversation.
type LastMessage struct {
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// Conversation is a persisted chat between participants.
type Conversation struct {
	ID           string
	Participants []string
	LastMessage  *LastMessage
	// Unread maps every participant to the number of messages they have not read.
	Unread    map[string]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a persisted chat message. Only ReadBy changes after creation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Kind           MessageKind
	FileURL        string
	ReadBy         []string
	CreatedAt      time.Time
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation starts a conversation between participants.
	// A two-party conversation is deduplicated: the existing one is returned with created=false.
	CreateConversation(ctx context.Context, participants []string) (conv *Conversation, created bool, err error)

	// GetConversation retrieves a conversation by ID. Returns ErrNotFound if absent.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations lists conversations the user takes part in, most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)

	// UpdateConversationLastMessage overwrites the last-message summary.
	UpdateConversationLastMessage(ctx context.Context, id string, summary LastMessage) error

	// IncrementUnread atomically adds one to a participant's unread counter.
	IncrementUnread(ctx context.Context, id, participantID string) error

	// ResetUnread sets a participant's unread counter to zero.
	ResetUnread(ctx context.Context, id, participantID string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg. The store assigns ID and CreatedAt and
	// initialises ReadBy to the sender.
	CreateMessage(ctx context.Context, msg *Message) error

	// AddReaderToMessages adds userID to the readers of every message in the
	// conversation not sent by excludeSenderID. Returns how many messages gained the reader.
	AddReaderToMessages(ctx context.Context, conversationID, excludeSenderID, userID string) (int64, error)

	// ListMessages returns up to limit messages in ascending order.
	// If beforeID is not empty, only messages older than that message are returned.
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]*Message, error)
}

// Repository is the persistence surface consumed by the messaging core.
type Repository interface {
	ConversationStore
	MessageStore
}

// Store aggregates all storage interfaces.
type Store interface {
	Repository

	// Close closes the underlying database connection.
	Close() error
}
