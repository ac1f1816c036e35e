package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/chatcore/internal/store"
	"github.com/vovakirdan/chatcore/internal/store/mocks"
)

type recordingRelay struct {
	mu       sync.Mutex
	messages []Message
	reads    []string
	statuses []PresenceStatus
	err      error
}

func (r *recordingRelay) MessageCreated(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.err
}

func (r *recordingRelay) MessagesRead(_ context.Context, conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, conversationID+"/"+userID)
	return r.err
}

func (r *recordingRelay) PresenceChanged(_ context.Context, _ string, status PresenceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return r.err
}

func testConversation() *store.Conversation {
	return &store.Conversation{
		ID:           "conv-1",
		Participants: []string{"u1", "u2"},
		Unread:       map[string]int{"u1": 0, "u2": 0},
	}
}

func TestSubmitMessagePersistenceFailureIsNotBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	// Given the store accepts the lookup but fails the insert
	repo.EXPECT().GetConversation(gomock.Any(), "conv-1").Return(testConversation(), nil)
	repo.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	relay := &recordingRelay{}
	h := newTestHub(t, repo, Options{Relay: relay})
	sender, peer := attach(h, "sender"), attach(h, "peer")
	h.rooms.Join("conv-1", sender)
	h.rooms.Join("conv-1", peer)

	// When the sender submits
	h.handle(sender, &Command{Kind: CommandSendMessage, Message: Message{ConversationID: "conv-1", SenderID: "u1", Content: "hi"}})

	// Then only the sender hears about the failure
	ev := mustEvent(t, sender.Events, EventError)
	req.Equal(ErrCodePersistenceFailure, ev.Error.Code)
	noEvent(t, sender)
	noEvent(t, peer)
	req.Empty(relay.messages)
}

func TestSubmitMessageUnreadFailureIsNotBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().GetConversation(gomock.Any(), "conv-1").Return(testConversation(), nil)
	repo.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg *store.Message) error {
		msg.ID = "m1"
		msg.CreatedAt = time.Now()
		msg.ReadBy = []string{msg.SenderID}
		return nil
	})
	repo.EXPECT().UpdateConversationLastMessage(gomock.Any(), "conv-1", gomock.Any()).Return(nil)
	repo.EXPECT().IncrementUnread(gomock.Any(), "conv-1", "u2").Return(errors.New("locked"))

	h := newTestHub(t, repo, Options{})
	sender, peer := attach(h, "sender"), attach(h, "peer")
	h.rooms.Join("conv-1", sender)
	h.rooms.Join("conv-1", peer)

	h.handle(sender, &Command{Kind: CommandSendMessage, Message: Message{ConversationID: "conv-1", SenderID: "u1", Content: "hi"}})

	require.Equal(t, ErrCodePersistenceFailure, mustEvent(t, sender.Events, EventError).Error.Code)
	noEvent(t, peer)
}

func TestSubmitMessageTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	// Given a repository that never answers
	repo.EXPECT().GetConversation(gomock.Any(), "conv-1").DoAndReturn(func(ctx context.Context, _ string) (*store.Conversation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h := newTestHub(t, repo, Options{PersistTimeout: 20 * time.Millisecond})
	sender := attach(h, "sender")

	start := time.Now()
	h.handle(sender, &Command{Kind: CommandSendMessage, Message: Message{ConversationID: "conv-1", SenderID: "u1", Content: "hi"}})

	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, ErrCodePersistenceFailure, mustEvent(t, sender.Events, EventError).Error.Code)
}

func TestSubmitMessageRelaysAfterBroadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().GetConversation(gomock.Any(), "conv-1").Return(testConversation(), nil)
	repo.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg *store.Message) error {
		msg.ID = "m1"
		msg.CreatedAt = time.Now()
		msg.ReadBy = []string{msg.SenderID}
		return nil
	})
	repo.EXPECT().UpdateConversationLastMessage(gomock.Any(), "conv-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, summary store.LastMessage) error {
			req.Equal("u1", summary.SenderID)
			req.Equal("see attachment", summary.Content)
			return nil
		})
	repo.EXPECT().IncrementUnread(gomock.Any(), "conv-1", "u2").Return(nil)

	// A failing relay must not affect delivery.
	relay := &recordingRelay{err: errors.New("broker down")}
	h := newTestHub(t, repo, Options{Relay: relay})
	sender, peer := attach(h, "sender"), attach(h, "peer")
	h.rooms.Join("conv-1", sender)
	h.rooms.Join("conv-1", peer)

	h.handle(sender, &Command{Kind: CommandSendMessage, Message: Message{
		ConversationID: "conv-1",
		SenderID:       "u1",
		Content:        "see attachment",
		Kind:           store.MessageKindFile,
		FileURL:        "https://files.example/doc.pdf",
	}})

	for _, c := range []*Client{sender, peer} {
		ev := mustEvent(t, c.Events, EventNewMessage)
		req.Equal("m1", ev.Message.ID)
		req.Equal(store.MessageKindFile, ev.Message.Kind)
		req.Equal("https://files.example/doc.pdf", ev.Message.FileURL)
	}
	req.Len(relay.messages, 1)
	req.Equal("m1", relay.messages[0].ID)
}

func TestMarkReadRelaysReceipt(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	gomock.InOrder(
		repo.EXPECT().GetConversation(gomock.Any(), "conv-1").Return(testConversation(), nil),
		repo.EXPECT().AddReaderToMessages(gomock.Any(), "conv-1", "u2", "u2").Return(int64(3), nil),
		repo.EXPECT().ResetUnread(gomock.Any(), "conv-1", "u2").Return(nil),
	)

	relay := &recordingRelay{}
	h := newTestHub(t, repo, Options{Relay: relay})
	reader := attach(h, "reader")
	h.rooms.Join("conv-1", reader)

	h.handle(reader, &Command{Kind: CommandMarkRead, Room: "conv-1", UserID: "u2"})

	mustEvent(t, reader.Events, EventMessagesRead)
	req.Equal([]string{"conv-1/u2"}, relay.reads)
}

func TestMarkReadResetFailureIsNotBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)

	repo.EXPECT().GetConversation(gomock.Any(), "conv-1").Return(testConversation(), nil)
	repo.EXPECT().AddReaderToMessages(gomock.Any(), "conv-1", "u2", "u2").Return(int64(1), nil)
	repo.EXPECT().ResetUnread(gomock.Any(), "conv-1", "u2").Return(errors.New("locked"))

	h := newTestHub(t, repo, Options{})
	reader, peer := attach(h, "reader"), attach(h, "peer")
	h.rooms.Join("conv-1", reader)
	h.rooms.Join("conv-1", peer)

	h.handle(reader, &Command{Kind: CommandMarkRead, Room: "conv-1", UserID: "u2"})

	require.Equal(t, ErrCodePersistenceFailure, mustEvent(t, reader.Events, EventError).Error.Code)
	noEvent(t, peer)
}
