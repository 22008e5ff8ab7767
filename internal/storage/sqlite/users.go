package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

const userColumns = "id, username, display_name, password_hash, is_admin, is_active, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash,
		&user.IsAdmin, &user.IsActive, &user.CreatedAt)
	return user, err
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, is_admin, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.DisplayName, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedAt, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, page models.PageRequest) ([]models.User, int, error) {
	page = page.Normalize()

	total, err := s.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (s *Store) UpdateUserStatus(ctx context.Context, id int64, active bool) error {
	return s.updateUser(ctx, "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?", active, id)
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, displayName string) error {
	return s.updateUser(ctx, "UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?", displayName, id)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateUser(ctx, "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", passwordHash, id)
}

func (s *Store) updateUser(ctx context.Context, query string, value any, id int64) error {
	result, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
