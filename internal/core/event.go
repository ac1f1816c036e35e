package core

import "github.com/vovakirdan/chatcore/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage delivers a persisted message to a conversation room.
	EventNewMessage EventKind = iota
	// EventUserTyping notifies room members that someone is typing.
	EventUserTyping
	// EventUserStopTyping notifies room members that someone stopped typing.
	EventUserStopTyping
	// EventMessagesRead notifies room members that a user read the conversation.
	EventMessagesRead
	// EventUserStatus carries a presence change to every connection.
	EventUserStatus
	// EventConversationCreated tells a user that someone started a conversation with them.
	EventConversationCreated
	// EventError notifies a single client about a domain error.
	EventError
)

// PresenceStatus is the coarse online/offline state of a user.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	Room         string
	UserID       string
	Status       PresenceStatus
	Message      Message
	Conversation *store.Conversation // for EventConversationCreated
	Error        *CoreError
}
