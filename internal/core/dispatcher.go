package core

import (
	"strings"

	"github.com/samber/lo"

	"github.com/vovakirdan/chatcore/internal/store"
)

// submitMessage validates, persists and fans out one chat message.
// Nothing is broadcast unless every repository write succeeded.
func (h *Hub) submitMessage(c *Client, msg Message) {
	sender, cerr := h.identity(c, msg.SenderID)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	msg.SenderID = sender

	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}
	if cerr := validateMessage(msg); cerr != nil {
		h.sendError(c, cerr)
		return
	}

	persisted, cerr := h.persistMessage(msg)
	if cerr != nil {
		h.log.Warn().Str("client_id", c.ID).Str("conversation_id", msg.ConversationID).
			Str("code", cerr.Code).Msg("message rejected")
		h.sendError(c, cerr)
		return
	}

	delivered, dropped := h.rooms.Broadcast(persisted.ConversationID, &Event{
		Kind:    EventNewMessage,
		Room:    persisted.ConversationID,
		UserID:  persisted.SenderID,
		Message: persisted,
	}, "")
	if dropped > 0 {
		h.log.Warn().Str("conversation_id", persisted.ConversationID).Int("dropped", dropped).
			Msg("new-message dropped for slow subscribers")
	}
	h.log.Debug().Str("conversation_id", persisted.ConversationID).Str("message_id", persisted.ID).
		Int("delivered", delivered).Msg("message dispatched")

	ctx, cancel := h.relayCtx()
	defer cancel()
	if err := h.relay.MessageCreated(ctx, persisted); err != nil {
		h.log.Error().Err(err).Str("message_id", persisted.ID).Msg("relay message")
	}
}

func validateMessage(msg Message) *CoreError {
	if msg.ConversationID == "" {
		return coreError(ErrCodeInvalidInput, "conversationId is required")
	}
	switch msg.Kind {
	case store.MessageKindText:
		if strings.TrimSpace(msg.Content) == "" {
			return coreError(ErrCodeInvalidInput, "text message content is empty")
		}
	case store.MessageKindImage, store.MessageKindFile:
		if msg.FileURL == "" {
			return coreError(ErrCodeInvalidInput, "fileUrl is required for "+string(msg.Kind)+" messages")
		}
	default:
		return coreError(ErrCodeInvalidInput, "unknown message type")
	}
	return nil
}

func (h *Hub) persistMessage(msg Message) (Message, *CoreError) {
	ctx, cancel := h.persistCtx()
	defer cancel()

	conv, err := h.repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		h.logStoreError(err, "get conversation", msg.ConversationID)
		return Message{}, storeError(err, "conversation not found")
	}
	if !conv.HasParticipant(msg.SenderID) {
		return Message{}, coreError(ErrCodeInvalidInput, "sender is not a participant of the conversation")
	}

	record := &store.Message{
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Kind:           msg.Kind,
		FileURL:        msg.FileURL,
	}
	if err := h.repo.CreateMessage(ctx, record); err != nil {
		h.logStoreError(err, "create message", msg.ConversationID)
		return Message{}, storeError(err, "conversation not found")
	}

	summary := store.LastMessage{SenderID: record.SenderID, Content: record.Content, CreatedAt: record.CreatedAt}
	if err := h.repo.UpdateConversationLastMessage(ctx, conv.ID, summary); err != nil {
		h.logStoreError(err, "update last message", conv.ID)
		return Message{}, storeError(err, "conversation not found")
	}
	for _, participant := range lo.Without(conv.Participants, record.SenderID) {
		if err := h.repo.IncrementUnread(ctx, conv.ID, participant); err != nil {
			h.logStoreError(err, "increment unread", conv.ID)
			return Message{}, storeError(err, "conversation not found")
		}
	}

	return messageFromStore(record), nil
}

func (h *Hub) logStoreError(err error, op, conversationID string) {
	h.log.Error().Err(err).Str("op", op).Str("conversation_id", conversationID).Msg("repository call failed")
}
