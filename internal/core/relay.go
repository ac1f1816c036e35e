package core

import "context"

// Relay forwards chat activity to systems outside this process.
// Relay errors never affect clients; the hub only logs them.
type Relay interface {
	MessageCreated(ctx context.Context, msg Message) error
	MessagesRead(ctx context.Context, conversationID, userID string) error
	PresenceChanged(ctx context.Context, userID string, status PresenceStatus) error
}

type nopRelay struct{}

func (nopRelay) MessageCreated(context.Context, Message) error                 { return nil }
func (nopRelay) MessagesRead(context.Context, string, string) error            { return nil }
func (nopRelay) PresenceChanged(context.Context, string, PresenceStatus) error { return nil }
