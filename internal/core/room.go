package core

import (
	"sync"

	"github.com/samber/lo"
)

// Rooms indexes which connections subscribe to which room.
// A room is named by a conversation ID or, for private notifications, by a user ID.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // room -> connID -> client
}

// NewRooms creates an empty membership index.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[string]*Client)}
}

// Join subscribes c to room. Returns true if newly added.
func (r *Rooms) Join(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	if _, exists := members[c.ID]; exists {
		return false
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
	return true
}

// Leave unsubscribes c from room. Returns true if removed.
func (r *Rooms) Leave(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, c)
}

// LeaveAll removes c from every room it joined and returns those rooms.
func (r *Rooms) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := lo.Keys(c.rooms)
	for _, room := range left {
		r.leaveLocked(room, c)
	}
	return left
}

func (r *Rooms) leaveLocked(room string, c *Client) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[c.ID]; !exists {
		return false
	}
	delete(members, c.ID)
	delete(c.rooms, room)
	// Drop empty rooms so the index does not grow with every conversation ever opened.
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	return true
}

// Members returns the connection IDs subscribed to room.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[room])
}

// Joined returns the rooms c is subscribed to.
func (r *Rooms) Joined(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(c.rooms)
}

// Broadcast sends an event to every client in room except excludeID.
// Slow consumers whose queue is full miss the event; the count is reported as dropped.
func (r *Rooms) Broadcast(room string, event *Event, excludeID string) (delivered, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, client := range r.rooms[room] {
		if id == excludeID {
			continue
		}
		if deliver(client, event) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

func deliver(c *Client, event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
