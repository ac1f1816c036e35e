package proto

import (
	"bytes"
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeRegister          = "register"
	InboundTypeJoinConversation  = "join-conversation"
	InboundTypeLeaveConversation = "leave-conversation"
	InboundTypeSendMessage       = "send-message"
	InboundTypeTyping            = "typing"
	InboundTypeStopTyping        = "stop-typing"
	InboundTypeMarkRead          = "mark-read"
	InboundTypeUserOnline        = "user-online"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage          = "new-message"
	EventUserTyping          = "user-typing"
	EventUserStopTyping      = "user-stop-typing"
	EventMessagesRead        = "messages-read"
	EventUserStatus          = "user-status"
	EventConversationCreated = "conversation-created"
	EventError               = "error"
)

// RegisterData binds the connection to a user.
type RegisterData struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

// UnmarshalJSON accepts the object form or a bare user id string.
func (d *RegisterData) UnmarshalJSON(b []byte) error {
	if id, ok := bareString(b); ok {
		d.UserID = id
		return nil
	}
	type plain RegisterData
	return json.Unmarshal(b, (*plain)(d))
}

// ConversationData names a conversation to join or leave.
type ConversationData struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
}

// UnmarshalJSON accepts the object form or a bare conversation id string.
func (d *ConversationData) UnmarshalJSON(b []byte) error {
	if id, ok := bareString(b); ok {
		d.ConversationID = id
		return nil
	}
	type plain ConversationData
	return json.Unmarshal(b, (*plain)(d))
}

// SendMessageData is a chat message from the client. SenderID may be omitted
// once the connection is registered.
type SendMessageData struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	SenderID       string `json:"senderId" validate:"omitempty,max=128"`
	Content        string `json:"content"`
	Type           string `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL        string `json:"fileUrl,omitempty" validate:"omitempty,url"`
}

// ConversationUserData is shared by typing, stop-typing and mark-read.
type ConversationUserData struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	UserID         string `json:"userId" validate:"omitempty,max=128"`
}

// UserOnlineData announces a user as online.
type UserOnlineData struct {
	UserID string `json:"userId" validate:"omitempty,max=128"`
}

func (d *UserOnlineData) UnmarshalJSON(b []byte) error {
	if id, ok := bareString(b); ok {
		d.UserID = id
		return nil
	}
	type plain UserOnlineData
	return json.Unmarshal(b, (*plain)(d))
}

// bareString decodes b when it is a JSON string.
func bareString(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", false
	}
	return s, true
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage carries a persisted message.
type EventMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	FileURL        string    `json:"fileUrl,omitempty"`
	ReadBy         []string  `json:"readBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EventConversationUser is the payload of user-typing, user-stop-typing and messages-read.
type EventConversationUser struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// UserStatusData reports a presence change.
type UserStatusData struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// LastMessage summarises the newest message of a conversation.
type LastMessage struct {
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is the public view of a conversation, used by
// conversation-created and the REST API.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	LastMessage  *LastMessage   `json:"lastMessage,omitempty"`
	Unread       map[string]int `json:"unreadCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
