// Package agents stores chatbot configurations.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/botdesk/botdesk/internal/db"
)

// ErrNotFound is returned when an agent does not exist.
var ErrNotFound = errors.New("agent not found")

// Service persists and reads agents.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates an agent service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "agents")),
	}
}

const agentColumns = `id, tenant_id, name, persona, traits, tone, provider,
	model, temperature, max_tokens, document_ids, is_active, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Persona, &a.Traits, &a.Tone,
		&a.Provider, &a.Model, &a.Temperature, &a.MaxTokens, &a.DocumentIDs,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return a, nil
}

// Create inserts a new agent.
func (s *Service) Create(ctx context.Context, input CreateInput) (Agent, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Agent{}, fmt.Errorf("agent name is required")
	}
	pgTenantID, err := dbpkg.ParseUUID(input.TenantID)
	if err != nil {
		return Agent{}, fmt.Errorf("invalid tenant id: %w", err)
	}
	traits := input.Traits
	if traits == nil {
		traits = []string{}
	}
	docIDs := input.DocumentIDs
	if docIDs == nil {
		docIDs = []string{}
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (tenant_id, name, persona, traits, tone, provider, model, temperature, max_tokens, document_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+agentColumns,
		pgTenantID, strings.TrimSpace(input.Name), input.Persona, traits, input.Tone,
		input.Provider, input.Model, input.Temperature, input.MaxTokens, docIDs,
	)
	a, err := scanAgent(row)
	if err != nil {
		return Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

// GetByID loads an agent by id.
func (s *Service) GetByID(ctx context.Context, id string) (Agent, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Agent{}, ErrNotFound
	}
	return scanAgent(s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, pgID))
}

// ListByTenant returns a tenant's agents, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]Agent, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tenant_id = $1 ORDER BY created_at DESC`,
		pgTenantID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
