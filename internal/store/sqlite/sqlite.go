package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/vovakirdan/chatcore/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the SQLite database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== ConversationStore implementation ====

// CreateConversation starts a conversation between participants.
// Two-party conversations are keyed by "dm:{min}:{max}" so starting one twice returns the original.
func (s *SQLiteStore) CreateConversation(ctx context.Context, participants []string) (*store.Conversation, bool, error) {
	participants = lo.Uniq(lo.Compact(participants))
	if len(participants) < 2 {
		return nil, false, fmt.Errorf("conversation needs at least two participants: %w", store.ErrInvalidArgument)
	}

	var directKey *string
	if len(participants) == 2 {
		key := directKeyFor(participants[0], participants[1])
		directKey = &key
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var convID string
	if directKey != nil {
		err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE direct_key = ?`, *directKey).Scan(&convID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("query direct conversation: %w", err)
		}
	}

	created := convID == ""
	if created {
		convID = uuid.NewString()
		now := s.now().UTC().UnixNano()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, direct_key, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, convID, directKey, now, now); err != nil {
			return nil, false, fmt.Errorf("insert conversation: %w", err)
		}

		for i, userID := range participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id, position, unread)
				VALUES (?, ?, ?, 0)
			`, convID, userID, i); err != nil {
				return nil, false, fmt.Errorf("insert participant: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	conv, err := s.GetConversation(ctx, convID)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	query := `
		SELECT id, last_sender_id, last_content, last_at, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	if err := s.loadParticipants(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations lists conversations the user takes part in, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	query := `
		SELECT c.id, c.last_sender_id, c.last_content, c.last_at, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC, c.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	var conversations []*store.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	// Release the only connection before issuing follow-up queries.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	for _, conv := range conversations {
		if err := s.loadParticipants(ctx, conv); err != nil {
			return nil, err
		}
	}

	return conversations, nil
}

// UpdateConversationLastMessage replaces the last-message summary unless the
// stored one is newer.
func (s *SQLiteStore) UpdateConversationLastMessage(ctx context.Context, id string, summary store.LastMessage) error {
	query := `
		UPDATE conversations
		SET last_sender_id = ?, last_content = ?, last_at = ?, updated_at = ?
		WHERE id = ? AND (last_at IS NULL OR last_at <= ?)
	`
	at := summary.CreatedAt.UTC().UnixNano()
	result, err := s.db.ExecContext(ctx, query, summary.SenderID, summary.Content, at, at, id, at)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing changed: either a newer summary is already stored or the
	// conversation is gone.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query conversation: %w", err)
	}
	return nil
}

// IncrementUnread atomically adds one to a participant's unread counter.
func (s *SQLiteStore) IncrementUnread(ctx context.Context, id, participantID string) error {
	query := `
		UPDATE conversation_participants
		SET unread = unread + 1
		WHERE conversation_id = ? AND user_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, id, participantID)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	return expectAffected(result, "participant "+participantID)
}

// ResetUnread sets a participant's unread counter to zero.
func (s *SQLiteStore) ResetUnread(ctx context.Context, id, participantID string) error {
	query := `
		UPDATE conversation_participants
		SET unread = 0
		WHERE conversation_id = ? AND user_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, id, participantID)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return expectAffected(result, "participant "+participantID)
}

// ==== MessageStore implementation ====

// CreateMessage persists msg, assigning its ID, timestamp and initial reader.
// Timestamps never go backwards within a conversation, even if the wall clock does.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, store.ErrNotFound)
		}
		return fmt.Errorf("query conversation: %w", err)
	}

	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(created_at), 0) FROM messages WHERE conversation_id = ?`,
		msg.ConversationID,
	).Scan(&last); err != nil {
		return fmt.Errorf("query last timestamp: %w", err)
	}

	createdAt := max(s.now().UTC().UnixNano(), last)
	id := uuid.NewString()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, kind, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, msg.ConversationID, msg.SenderID, msg.Content, string(msg.Kind), nullString(msg.FileURL), createdAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES (?, ?, ?)
	`, id, msg.SenderID, createdAt); err != nil {
		return fmt.Errorf("insert sender read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	msg.ReadBy = []string{msg.SenderID}
	return nil
}

// AddReaderToMessages marks every message not sent by excludeSenderID as read by userID.
func (s *SQLiteStore) AddReaderToMessages(ctx context.Context, conversationID, excludeSenderID, userID string) (int64, error) {
	query := `
		INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
		SELECT id, ?, ?
		FROM messages
		WHERE conversation_id = ? AND sender_id <> ?
		ORDER BY seq ASC
	`
	result, err := s.db.ExecContext(ctx, query, userID, s.now().UTC().UnixNano(), conversationID, excludeSenderID)
	if err != nil {
		return 0, fmt.Errorf("insert readers: %w", err)
	}

	added, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return added, nil
}

// ListMessages retrieves messages from a conversation in ascending order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		query string
		args  []interface{}
	)

	if beforeID != "" {
		var beforeSeq int64
		err := s.db.QueryRowContext(ctx,
			`SELECT seq FROM messages WHERE id = ? AND conversation_id = ?`,
			beforeID, conversationID,
		).Scan(&beforeSeq)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("message %s: %w", beforeID, store.ErrNotFound)
			}
			return nil, fmt.Errorf("query cursor: %w", err)
		}
		query = `
			SELECT seq, id, conversation_id, sender_id, content, kind, COALESCE(file_url, ''), created_at
			FROM messages
			WHERE conversation_id = ? AND seq < ?
			ORDER BY seq DESC
			LIMIT ?
		`
		args = []interface{}{conversationID, beforeSeq, limit}
	} else {
		query = `
			SELECT seq, id, conversation_id, sender_id, content, kind, COALESCE(file_url, ''), created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY seq DESC
			LIMIT ?
		`
		args = []interface{}{conversationID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	var (
		messages []*store.Message
		minSeq   int64
		maxSeq   int64
	)
	for rows.Next() {
		var (
			msg       store.Message
			seq       int64
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&seq, &msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &kind, &msg.FileURL, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, &msg)

		if maxSeq == 0 {
			maxSeq = seq
		}
		minSeq = seq
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if len(messages) == 0 {
		return []*store.Message{}, nil
	}

	readers, err := s.readersBetween(ctx, conversationID, minSeq, maxSeq)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		msg.ReadBy = readers[msg.ID]
	}

	slices.Reverse(messages)
	return messages, nil
}

func (s *SQLiteStore) readersBetween(ctx context.Context, conversationID string, minSeq, maxSeq int64) (map[string][]string, error) {
	query := `
		SELECT r.message_id, r.user_id
		FROM message_reads r
		JOIN messages m ON m.id = r.message_id
		WHERE m.conversation_id = ? AND m.seq BETWEEN ? AND ?
		ORDER BY r.rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, minSeq, maxSeq)
	if err != nil {
		return nil, fmt.Errorf("query readers: %w", err)
	}
	defer rows.Close()

	readers := make(map[string][]string)
	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("scan reader: %w", err)
		}
		readers[messageID] = append(readers[messageID], userID)
	}

	return readers, rows.Err()
}

func (s *SQLiteStore) loadParticipants(ctx context.Context, conv *store.Conversation) error {
	query := `
		SELECT user_id, unread
		FROM conversation_participants
		WHERE conversation_id = ?
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conv.ID)
	if err != nil {
		return fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	conv.Participants = nil
	conv.Unread = make(map[string]int)
	for rows.Next() {
		var (
			userID string
			unread int
		)
		if err := rows.Scan(&userID, &unread); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		conv.Participants = append(conv.Participants, userID)
		conv.Unread[userID] = unread
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*store.Conversation, error) {
	var (
		conv         store.Conversation
		lastSenderID sql.NullString
		lastContent  sql.NullString
		lastAt       sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(&conv.ID, &lastSenderID, &lastContent, &lastAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if lastSenderID.Valid {
		conv.LastMessage = &store.LastMessage{
			SenderID:  lastSenderID.String,
			Content:   lastContent.String,
			CreatedAt: time.Unix(0, lastAt.Int64).UTC(),
		}
	}
	return &conv, nil
}

func expectAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func directKeyFor(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	// The length prefix keeps ids containing ':' from colliding.
	return fmt.Sprintf("dm:%d:%s:%s", len(pair[0]), pair[0], pair[1])
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
