package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/store"
)

// DefaultPersistTimeout bounds every repository call when Options leaves it unset.
const DefaultPersistTimeout = 5 * time.Second

// Options tunes a Hub.
type Options struct {
	// PersistTimeout bounds each repository call made on behalf of a client.
	PersistTimeout time.Duration
	// Relay receives chat activity after it has been delivered locally. Optional.
	Relay Relay
}

// Hub routes client commands: it owns the connection registry and room
// membership, persists through the repository and fans events out.
// Each client gets its own dispatch goroutine, so commands from one
// connection are handled in order and a slow repository call stalls only that connection.
type Hub struct {
	repo     store.Repository
	log      *zerolog.Logger
	relay    Relay
	timeout  time.Duration
	registry *Registry
	rooms    *Rooms

	// bindMu orders identity binding together with the private-room switch,
	// so the connection holding a user's binding is the one in its room.
	bindMu sync.Mutex

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub backed by repo.
func NewHub(repo store.Repository, logger *zerolog.Logger, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.Relay == nil {
		opts.Relay = nopRelay{}
	}

	base, cancel := context.WithCancel(context.Background())
	return &Hub{
		repo:     repo,
		log:      logger,
		relay:    opts.Relay,
		timeout:  opts.PersistTimeout,
		registry: NewRegistry(),
		rooms:    NewRooms(),
		base:     base,
		cancel:   cancel,
	}
}

// Run blocks until ctx is cancelled, then stops every dispatch loop and
// waits for their disconnect cleanup to finish.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.cancel()
	h.wg.Wait()
	h.log.Info().Msg("hub stopped")
}

// RegisterClient starts serving a freshly accepted connection.
func (h *Hub) RegisterClient(c *Client) {
	h.registry.Add(c)
	h.wg.Add(1)
	go h.serve(c)
	h.log.Debug().Str("client_id", c.ID).Msg("client connected")
}

// UnregisterClient queues the disconnect for c behind its pending commands
// and waits until the cleanup has run. Safe to call more than once.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case c.Commands <- &Command{Kind: CommandDisconnect}:
	case <-c.done:
	}
	<-c.done
}

// NotifyUser delivers ev to the connection currently bound to userID.
func (h *Hub) NotifyUser(userID string, ev *Event) bool {
	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	return deliver(c, ev)
}

// Online reports whether userID currently has a registered connection.
func (h *Hub) Online(userID string) bool {
	_, ok := h.registry.Lookup(userID)
	return ok
}

func (h *Hub) serve(c *Client) {
	defer h.wg.Done()
	defer close(c.done)

	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			if stop := h.handle(c, cmd); stop {
				return
			}
		case <-h.base.Done():
			h.disconnect(c)
			return
		}
	}
}

// handle executes one command. It reports true once the client is gone.
func (h *Hub) handle(c *Client, cmd *Command) bool {
	switch cmd.Kind {
	case CommandRegister:
		h.register(c, cmd.UserID)
	case CommandJoinRoom:
		h.join(c, cmd.Room)
	case CommandLeaveRoom:
		h.leave(c, cmd.Room)
	case CommandSendMessage:
		h.submitMessage(c, cmd.Message)
	case CommandTyping:
		h.typing(c, cmd.Room, cmd.UserID, EventUserTyping)
	case CommandStopTyping:
		h.typing(c, cmd.Room, cmd.UserID, EventUserStopTyping)
	case CommandMarkRead:
		h.markRead(c, cmd.Room, cmd.UserID)
	case CommandPresence:
		h.presence(c, cmd.UserID)
	case CommandDisconnect:
		h.disconnect(c)
		return true
	default:
		h.sendError(c, coreError(ErrCodeInvalidInput, "unknown command"))
	}
	return false
}

// identity resolves which user a command acts as. An empty claim falls back
// to the registered (or verified) identity; a claim that contradicts either is rejected.
func (h *Hub) identity(c *Client, claimed string) (string, *CoreError) {
	bound, registered := h.registry.UserOf(c.ID)

	if claimed == "" {
		switch {
		case registered:
			return bound, nil
		case c.VerifiedUserID != "":
			return c.VerifiedUserID, nil
		default:
			return "", coreError(ErrCodeInvalidInput, "userId is required")
		}
	}
	if registered && claimed != bound {
		return "", coreError(ErrCodeUnauthorized, "connection is registered as another user")
	}
	if c.VerifiedUserID != "" && claimed != c.VerifiedUserID {
		return "", coreError(ErrCodeUnauthorized, "identity does not match access token")
	}
	return claimed, nil
}

func (h *Hub) register(c *Client, userID string) {
	if userID == "" {
		h.sendError(c, coreError(ErrCodeInvalidInput, "userId is required"))
		return
	}
	if c.VerifiedUserID != "" && userID != c.VerifiedUserID {
		h.sendError(c, coreError(ErrCodeUnauthorized, "identity does not match access token"))
		return
	}

	h.bindMu.Lock()
	defer h.bindMu.Unlock()

	if old, ok := h.registry.UserOf(c.ID); ok && old != userID {
		h.rooms.Leave(old, c)
	}
	previous, replaced := h.registry.Register(c.ID, userID)
	if replaced {
		// The older connection stays open but no longer receives this user's private traffic.
		if prev, ok := h.registry.Get(previous); ok {
			h.rooms.Leave(userID, prev)
		}
		h.log.Info().Str("user_id", userID).Str("client_id", c.ID).Str("previous_client_id", previous).
			Msg("registration replaced an older connection")
	}
	h.rooms.Join(userID, c)
	h.log.Debug().Str("user_id", userID).Str("client_id", c.ID).Msg("client registered")
}

func (h *Hub) join(c *Client, room string) {
	if room == "" {
		h.sendError(c, coreError(ErrCodeInvalidInput, "conversationId is required"))
		return
	}
	if h.rooms.Join(room, c) {
		h.log.Debug().Str("client_id", c.ID).Str("conversation_id", room).Msg("joined conversation")
	}
}

func (h *Hub) leave(c *Client, room string) {
	if room == "" {
		h.sendError(c, coreError(ErrCodeInvalidInput, "conversationId is required"))
		return
	}
	if h.rooms.Leave(room, c) {
		h.log.Debug().Str("client_id", c.ID).Str("conversation_id", room).Msg("left conversation")
	}
}

// disconnect removes every trace of c. Offline presence is announced only
// when c was still the user's current connection.
func (h *Hub) disconnect(c *Client) {
	h.rooms.LeaveAll(c)
	userID, wasBound := h.registry.Unregister(c.ID)
	h.registry.Remove(c.ID)

	if !wasBound {
		h.log.Debug().Str("client_id", c.ID).Msg("client disconnected")
		return
	}
	h.broadcastStatus(userID, PresenceOffline)
	h.log.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("user went offline")
}

func (h *Hub) sendError(c *Client, err *CoreError) {
	ev := &Event{Kind: EventError, Error: err}
	if !deliver(c, ev) {
		h.log.Warn().Str("client_id", c.ID).Str("code", err.Code).Msg("dropping error event for slow client")
	}
}

func (h *Hub) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.base, h.timeout)
}

func (h *Hub) relayCtx() (context.Context, context.CancelFunc) {
	// Outlives shutdown so the final offline events still reach the relay.
	return context.WithTimeout(context.WithoutCancel(h.base), h.timeout)
}
