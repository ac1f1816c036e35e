package core

// typing relays a typing indicator to the room, skipping the typist's own connection.
func (h *Hub) typing(c *Client, room, claimed string, kind EventKind) {
	if room == "" {
		h.sendError(c, coreError(ErrCodeInvalidInput, "conversationId is required"))
		return
	}
	userID, cerr := h.identity(c, claimed)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	h.rooms.Broadcast(room, &Event{Kind: kind, Room: room, UserID: userID}, c.ID)
}

func (h *Hub) presence(c *Client, claimed string) {
	userID, cerr := h.identity(c, claimed)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}
	h.broadcastStatus(userID, PresenceOnline)
}

// broadcastStatus tells every live connection about a presence change.
func (h *Hub) broadcastStatus(userID string, status PresenceStatus) {
	ev := &Event{Kind: EventUserStatus, UserID: userID, Status: status}
	dropped := 0
	for _, client := range h.registry.Snapshot() {
		if !deliver(client, ev) {
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn().Str("user_id", userID).Int("dropped", dropped).Msg("user-status dropped for slow clients")
	}

	ctx, cancel := h.relayCtx()
	defer cancel()
	if err := h.relay.PresenceChanged(ctx, userID, status); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("relay presence")
	}
}
