package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomsJoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	c := NewClient("c1", 0)

	req.True(rooms.Join("conv", c))
	req.False(rooms.Join("conv", c))
	req.Equal([]string{"c1"}, rooms.Members("conv"))

	req.True(rooms.Leave("conv", c))
	req.False(rooms.Leave("conv", c))
	req.Empty(rooms.Members("conv"))
}

func TestRoomsLeaveAll(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	c := NewClient("c1", 0)
	other := NewClient("c2", 0)

	rooms.Join("a", c)
	rooms.Join("b", c)
	rooms.Join("b", other)

	req.ElementsMatch([]string{"a", "b"}, rooms.LeaveAll(c))
	req.Empty(rooms.Joined(c))
	req.Empty(rooms.Members("a"))
	req.Equal([]string{"c2"}, rooms.Members("b"))
}

func TestRoomsBroadcastExcludesAndDrops(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()
	sender := NewClient("sender", 1)
	reader := NewClient("reader", 1)
	rooms.Join("conv", sender)
	rooms.Join("conv", reader)

	delivered, dropped := rooms.Broadcast("conv", &Event{Kind: EventUserTyping}, "sender")
	req.Equal(1, delivered)
	req.Zero(dropped)
	req.Len(sender.Events, 0)

	// reader's single-slot queue is now full.
	delivered, dropped = rooms.Broadcast("conv", &Event{Kind: EventUserTyping}, "sender")
	req.Zero(delivered)
	req.Equal(1, dropped)
}
