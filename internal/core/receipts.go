package core

// markRead records that userID has read everything in the conversation sent
// by others, clears their unread counter and tells the room.
func (h *Hub) markRead(c *Client, conversationID, claimed string) {
	if conversationID == "" {
		h.sendError(c, coreError(ErrCodeInvalidInput, "conversationId is required"))
		return
	}
	userID, cerr := h.identity(c, claimed)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	if cerr := h.persistRead(conversationID, userID); cerr != nil {
		h.log.Debug().Str("client_id", c.ID).Str("conversation_id", conversationID).
			Str("user_id", userID).Str("code", cerr.Code).Msg("mark-read rejected")
		h.sendError(c, cerr)
		return
	}

	_, dropped := h.rooms.Broadcast(conversationID, &Event{
		Kind:   EventMessagesRead,
		Room:   conversationID,
		UserID: userID,
	}, "")
	if dropped > 0 {
		h.log.Warn().Str("conversation_id", conversationID).Int("dropped", dropped).
			Msg("messages-read dropped for slow subscribers")
	}

	ctx, cancel := h.relayCtx()
	defer cancel()
	if err := h.relay.MessagesRead(ctx, conversationID, userID); err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("relay read receipt")
	}
}

func (h *Hub) persistRead(conversationID, userID string) *CoreError {
	ctx, cancel := h.persistCtx()
	defer cancel()

	conv, err := h.repo.GetConversation(ctx, conversationID)
	if err != nil {
		h.logStoreError(err, "get conversation", conversationID)
		return storeError(err, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return coreError(ErrCodeInvalidInput, "reader is not a participant of the conversation")
	}

	added, err := h.repo.AddReaderToMessages(ctx, conversationID, userID, userID)
	if err != nil {
		h.logStoreError(err, "add reader", conversationID)
		return storeError(err, "conversation not found")
	}
	if err := h.repo.ResetUnread(ctx, conversationID, userID); err != nil {
		h.logStoreError(err, "reset unread", conversationID)
		return storeError(err, "conversation not found")
	}
	h.log.Debug().Str("conversation_id", conversationID).Str("user_id", userID).
		Int64("marked", added).Msg("conversation read")
	return nil
}
