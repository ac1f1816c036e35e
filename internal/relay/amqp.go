package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/core"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

const (
	queueSize      = 1024
	publishTimeout = 5 * time.Second
)

// ErrQueueFull is returned when the broker falls behind and the outgoing
// queue has no room left. The event is dropped.
var ErrQueueFull = errors.New("relay queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("relay closed")

type outgoing struct {
	key string
	msg amqp.Publishing
}

// Publisher relays chat activity to a RabbitMQ topic exchange.
// It implements core.Relay. Events are queued and published by a single
// goroutine over one reused channel, so callers never wait on the broker.
type Publisher struct {
	conn     *amqp.Connection
	open     func() (channel, error)
	exchange string
	log      *zerolog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan outgoing
	done   chan struct{}
}

var _ core.Relay = (*Publisher)(nil)

// Dial connects to url and declares a durable topic exchange.
func Dial(url, exchange string, logger *zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	p := newPublisher(exchange, logger, queueSize, func() (channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	})
	p.conn = conn
	return p, nil
}

func newPublisher(exchange string, logger *zerolog.Logger, size int, open func() (channel, error)) *Publisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := &Publisher{
		open:     open,
		exchange: exchange,
		log:      logger,
		now:      time.Now,
		queue:    make(chan outgoing, size),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// MessageCreated publishes a persisted message.
func (p *Publisher) MessageCreated(ctx context.Context, msg core.Message) error {
	return p.publish(ctx, KeyMessageCreated, MessageCreated{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           string(msg.Kind),
		FileURL:        msg.FileURL,
		CreatedAt:      msg.CreatedAt,
	})
}

// MessagesRead publishes a read receipt.
func (p *Publisher) MessagesRead(ctx context.Context, conversationID, userID string) error {
	return p.publish(ctx, KeyMessagesRead, MessagesRead{ConversationID: conversationID, UserID: userID})
}

// PresenceChanged publishes an online/offline transition.
func (p *Publisher) PresenceChanged(ctx context.Context, userID string, status core.PresenceStatus) error {
	return p.publish(ctx, KeyPresenceChanged, PresenceChanged{UserID: userID, Status: string(status)})
}

func (p *Publisher) publish(ctx context.Context, key string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := newEnvelope(key, data, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	out := outgoing{key: key, msg: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.Time,
		Type:         env.Meta.Type,
		Body:         body,
	}}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- out:
		return nil
	default:
		return fmt.Errorf("%s: %w", key, ErrQueueFull)
	}
}

// run drains the queue until Close. A failed channel is dropped and reopened
// for the next event.
func (p *Publisher) run() {
	defer close(p.done)

	var ch channel
	defer func() {
		if ch != nil {
			_ = ch.Close()
		}
	}()

	for out := range p.queue {
		if ch == nil {
			opened, err := p.open()
			if err != nil {
				p.log.Warn().Err(err).Str("key", out.key).Msg("relay: open channel failed, event dropped")
				continue
			}
			ch = opened
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := ch.PublishWithContext(ctx, p.exchange, out.key, false, false, out.msg)
		cancel()
		if err != nil {
			p.log.Warn().Err(err).Str("key", out.key).Msg("relay: publish failed, event dropped")
			_ = ch.Close()
			ch = nil
			continue
		}
		p.log.Debug().Str("key", out.key).Str("exchange", p.exchange).Msg("published")
	}
}

// Close flushes queued events and closes the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
