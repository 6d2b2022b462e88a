// Package channels stores platform channel registrations.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/botdesk/botdesk/internal/db"
	"github.com/botdesk/botdesk/internal/platform"
)

// ErrNotFound is returned when a channel does not exist.
var ErrNotFound = errors.New("channel not found")

// Service persists and reads channels.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a channel service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "channels")),
	}
}

const channelColumns = `id, tenant_id, COALESCE(agent_id::text, ''), platform,
	external_account_id, credentials, secret, verify_token, is_active,
	created_at, updated_at`

func scanChannel(row pgx.Row) (Channel, error) {
	var (
		ch        Channel
		rawCreds  []byte
		rawPlatf  string
	)
	err := row.Scan(&ch.ID, &ch.TenantID, &ch.AgentID, &rawPlatf,
		&ch.ExternalAccountID, &rawCreds, &ch.Secret, &ch.VerifyToken,
		&ch.IsActive, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, err
	}
	ch.Platform = platform.Platform(rawPlatf)
	if len(rawCreds) > 0 {
		if err := json.Unmarshal(rawCreds, &ch.Credentials); err != nil {
			return Channel{}, fmt.Errorf("decode credentials: %w", err)
		}
	}
	return ch, nil
}

// Create registers a new channel.
func (s *Service) Create(ctx context.Context, input CreateInput) (Channel, error) {
	p, err := platform.Parse(input.Platform)
	if err != nil {
		return Channel{}, err
	}
	pgTenantID, err := dbpkg.ParseUUID(input.TenantID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid tenant id: %w", err)
	}
	pgAgentID, err := dbpkg.ParseUUID(input.AgentID)
	if err != nil {
		return Channel{}, fmt.Errorf("invalid agent id: %w", err)
	}
	creds := input.Credentials
	if creds == nil {
		creds = platform.Credentials{}
	}
	rawCreds, err := json.Marshal(creds)
	if err != nil {
		return Channel{}, fmt.Errorf("encode credentials: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO channels (tenant_id, agent_id, platform, external_account_id, credentials, secret, verify_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+channelColumns,
		pgTenantID, pgAgentID, p.String(), input.ExternalAccountID, rawCreds, input.Secret, input.VerifyToken,
	)
	ch, err := scanChannel(row)
	if err != nil {
		return Channel{}, fmt.Errorf("create channel: %w", err)
	}
	return ch, nil
}

// GetByID loads a channel by id.
func (s *Service) GetByID(ctx context.Context, id string) (Channel, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Channel{}, ErrNotFound
	}
	return scanChannel(s.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, pgID))
}

// ListByTenant returns a tenant's channels, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]Channel, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE tenant_id = $1 ORDER BY created_at DESC`,
		pgTenantID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// SetActive flips a channel's active flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE channels SET is_active = $2, updated_at = now() WHERE id = $1`,
		pgID, active)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
