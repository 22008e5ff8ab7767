package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for users, the audit trail and
// the local citizens table.
type Store struct {
	pool *pgxpool.Pool
}

// ConnectTimeout bounds the total time spent retrying the initial connection.
var ConnectTimeout = 2 * time.Minute

// New connects with exponential backoff and runs migrations.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = ConnectTimeout

	err = backoff.RetryNotify(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		logger.Warn("retrying postgres connection", zap.Error(err), zap.Duration("next", next))
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			action TEXT NOT NULL,
			details TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs (action);`,
		`CREATE TABLE IF NOT EXISTS citizens (
			id BIGSERIAL PRIMARY KEY,
			national_id VARCHAR(20) UNIQUE NOT NULL,
			first_name TEXT NOT NULL,
			father_name TEXT NOT NULL,
			grandfather_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			gender TEXT,
			date_of_birth TEXT,
			is_deceased BOOLEAN NOT NULL DEFAULT FALSE,
			death_date TEXT,
			social_status TEXT,
			region TEXT,
			city TEXT,
			address TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = "id, username, display_name, password_hash, is_admin, is_active, created_at"

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash,
		&user.IsAdmin, &user.IsActive, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO users (username, display_name, password_hash, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.Username, user.DisplayName, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (s *Store) ListUsers(ctx context.Context, page models.PageRequest) ([]models.User, int, error) {
	page = page.Normalize()

	total, err := s.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (s *Store) UpdateUserStatus(ctx context.Context, id int64, active bool) error {
	return s.updateUser(ctx, "UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2", active, id)
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, displayName string) error {
	return s.updateUser(ctx, "UPDATE users SET display_name = $1, updated_at = NOW() WHERE id = $2", displayName, id)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateUser(ctx, "UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2", passwordHash, id)
}

func (s *Store) updateUser(ctx context.Context, query string, value any, id int64) error {
	tag, err := s.pool.Exec(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
