// Package tenants manages workspaces and their dashboard user accounts.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	dbpkg "github.com/botdesk/botdesk/internal/db"
)

// ErrInvalidCredentials is returned when a login attempt fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service persists tenants and users.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a tenant service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "tenants")),
	}
}

// CreateTenant inserts a new workspace.
func (s *Service) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, fmt.Errorf("tenant name is required")
	}
	var t Tenant
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name) VALUES ($1)
		 RETURNING id, name, created_at, updated_at`,
		name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

// GetTenant loads a workspace by id.
func (s *Service) GetTenant(ctx context.Context, id string) (Tenant, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Tenant{}, err
	}
	var t Tenant
	err = s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`,
		pgID,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// CreateUser inserts a user with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, tenantID, email, password, role string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, fmt.Errorf("email and password are required")
	}
	if role == "" {
		role = RoleMember
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return User{}, err
	}
	var u User
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, tenant_id, email, role, is_active, created_at`,
		pgTenantID, email, string(hash), role,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate verifies an email/password pair against the stored hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		u    User
		hash string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, email, role, is_active, created_at, password_hash
		 FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.TenantID, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureAdmin seeds the bootstrap tenant and admin account on first start.
// Subsequent starts are no-ops.
func (s *Service) EnsureAdmin(ctx context.Context, tenantName, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	var existing int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE email = $1`, email).Scan(&existing); err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if existing > 0 {
		return nil
	}
	if tenantName == "" {
		tenantName = "default"
	}
	tenant, err := s.CreateTenant(ctx, tenantName)
	if err != nil {
		return err
	}
	if _, err := s.CreateUser(ctx, tenant.ID, email, password, RoleAdmin); err != nil {
		return err
	}
	s.logger.Info("seeded admin account", slog.String("email", email), slog.String("tenant_id", tenant.ID))
	return nil
}
