// Package conversation owns conversation records and the resolver that maps
// an inbound sender identity to exactly one active conversation.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/botdesk/botdesk/internal/db"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// CreateInput carries the fields needed to open a conversation.
type CreateInput struct {
	TenantID     string
	ChannelID    string
	AgentID      string
	ExternalID   string
	CustomerName string
}

// Service persists and reads conversations.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "conversation")),
	}
}

const conversationColumns = `id, tenant_id, channel_id, agent_id, external_id,
	status, priority, customer_name, customer_email, metadata, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		c       Conversation
		status  string
		rawMeta []byte
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.ChannelID, &c.AgentID, &c.ExternalID,
		&status, &c.Priority, &c.CustomerName, &c.CustomerEmail, &rawMeta,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	c.Status = Status(status)
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &c.Metadata); err != nil {
			return Conversation{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return c, nil
}

// FindActive returns the active conversation for a (channel, external
// identity) pair, or ErrNotFound.
func (s *Service) FindActive(ctx context.Context, channelID, externalID string) (Conversation, error) {
	pgChannelID, err := dbpkg.ParseUUID(channelID)
	if err != nil {
		return Conversation{}, ErrNotFound
	}
	return scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations
		 WHERE channel_id = $1 AND external_id = $2 AND status = 'active'`,
		pgChannelID, externalID))
}

// Create opens a new active conversation. The partial unique index on
// (channel_id, external_id) WHERE status = 'active' makes concurrent creates
// for the same identity collide; callers detect that with
// db.IsUniqueViolation and re-read.
func (s *Service) Create(ctx context.Context, input CreateInput) (Conversation, error) {
	pgTenantID, err := dbpkg.ParseUUID(input.TenantID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid tenant id: %w", err)
	}
	pgChannelID, err := dbpkg.ParseUUID(input.ChannelID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid channel id: %w", err)
	}
	pgAgentID, err := dbpkg.ParseUUID(input.AgentID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid agent id: %w", err)
	}
	if strings.TrimSpace(input.ExternalID) == "" {
		return Conversation{}, fmt.Errorf("external id is required")
	}
	return scanConversation(s.pool.QueryRow(ctx,
		`INSERT INTO conversations (tenant_id, channel_id, agent_id, external_id, customer_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+conversationColumns,
		pgTenantID, pgChannelID, pgAgentID, input.ExternalID, input.CustomerName))
}

// GetByID loads a conversation by id.
func (s *Service) GetByID(ctx context.Context, id string) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, ErrNotFound
	}
	return scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, pgID))
}

// ListByTenant returns a page of a tenant's conversations, most recently
// updated first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]Conversation, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations
		 WHERE tenant_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		pgTenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	var conversations []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// UpdateStatus transitions a conversation's lifecycle state.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`,
		pgID, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch marks a conversation active and bumps updated_at, so new inbound
// traffic both reactivates it and sorts it first in the dashboard.
func (s *Service) Touch(ctx context.Context, id string) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE conversations SET status = 'active', updated_at = now() WHERE id = $1`, pgID)
	return err
}
