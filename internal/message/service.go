// Package message persists and reads conversation messages.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/botdesk/botdesk/internal/db"
	"github.com/botdesk/botdesk/internal/events"
)

// Publisher is the event surface the service notifies after writes.
type Publisher interface {
	Publish(event events.Event)
}

// DBService persists messages in Postgres and publishes created events.
type DBService struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	publisher Publisher
	tenantOf  TenantLookup
}

// TenantLookup resolves the tenant owning a conversation, used to scope
// published events. May be nil when event fan-out is disabled.
type TenantLookup func(ctx context.Context, conversationID string) (string, error)

// NewService creates a message service. publisher and tenantOf may be nil.
func NewService(log *slog.Logger, pool *pgxpool.Pool, publisher Publisher, tenantOf TenantLookup) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		pool:      pool,
		logger:    log.With(slog.String("service", "message")),
		publisher: publisher,
		tenantOf:  tenantOf,
	}
}

// Persist writes a single message.
func (s *DBService) Persist(ctx context.Context, input PersistInput) (Message, error) {
	pgConversationID, err := dbpkg.ParseUUID(input.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	if !input.Sender.Valid() {
		return Message{}, fmt.Errorf("invalid sender %q", input.Sender)
	}
	metaBytes, err := json.Marshal(nonNilMap(input.Metadata))
	if err != nil {
		return Message{}, fmt.Errorf("marshal message metadata: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender, content, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, conversation_id, sender, content, metadata, created_at`,
		pgConversationID, string(input.Sender), input.Content, metaBytes)
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("persist message: %w", err)
	}
	s.publishCreated(ctx, msg)
	return msg, nil
}

// ListLatest returns the latest N messages in oldest-first order, ready for
// context assembly.
func (s *DBService) ListLatest(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	pgConversationID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, content, metadata, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		pgConversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest: %w", err)
	}
	defer rows.Close()
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// ListByConversation returns a page of messages, oldest first.
func (s *DBService) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]Message, error) {
	pgConversationID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, content, metadata, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at, id
		 LIMIT $2 OFFSET $3`,
		pgConversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m       Message
		sender  string
		rawMeta []byte
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &sender, &m.Content, &rawMeta, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	m.Sender = Sender(sender)
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &m.Metadata); err != nil {
			return Message{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (s *DBService) publishCreated(ctx context.Context, msg Message) {
	if s.publisher == nil {
		return
	}
	tenantID := ""
	if s.tenantOf != nil {
		id, err := s.tenantOf(ctx, msg.ConversationID)
		if err != nil {
			s.logger.Warn("resolve tenant for event failed",
				slog.String("conversation_id", msg.ConversationID), slog.Any("error", err))
			return
		}
		tenantID = strings.TrimSpace(id)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("marshal message event failed", slog.Any("error", err))
		return
	}
	s.publisher.Publish(events.Event{
		Type:           events.TypeMessageCreated,
		TenantID:       tenantID,
		ConversationID: msg.ConversationID,
		Data:           payload,
	})
}
