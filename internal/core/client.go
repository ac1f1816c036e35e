package core

// DefaultEventBuffer is the per-connection outbound queue size used when none is configured.
const DefaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
// Its identity lives in the Registry; a Client is anonymous until it registers.
type Client struct {
	ID string
	// VerifiedUserID is the identity proven at handshake time. Empty when authentication is disabled.
	VerifiedUserID string
	Commands       chan *Command
	Events         chan *Event

	rooms map[string]struct{} // guarded by Rooms.mu
	done  chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, buffer),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has finished cleaning up after the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
