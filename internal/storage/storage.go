package storage

import (
	"context"
	"errors"
	"strings"

	"civilregistry/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore persists staff accounts. Accounts are never hard-deleted.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context, page models.PageRequest) ([]models.User, int, error)
	UpdateUserStatus(ctx context.Context, id int64, active bool) error
	UpdateUserProfile(ctx context.Context, id int64, displayName string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	CountUsers(ctx context.Context) (int, error)
}

// AuditStore is the append-only audit trail. Listings are ordered newest
// first, with the entry id breaking timestamp ties.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry models.AuditLog) (models.AuditLog, error)
	ListAuditLogs(ctx context.Context, page models.PageRequest) ([]models.AuditLog, int, error)
	ListUserAuditLogs(ctx context.Context, userID int64, page models.PageRequest) ([]models.AuditLog, int, error)
	// ListRecentByAction returns the latest entries with the given action. A
	// nil userID spans all users.
	ListRecentByAction(ctx context.Context, action string, userID *int64, limit int) ([]models.AuditLog, error)
	// CountAuditLogsPerUser includes users with no entries, ordered by count
	// descending then username ascending.
	CountAuditLogsPerUser(ctx context.Context) ([]models.UserAuditCount, error)
}

// CitizenStore is the local citizens table. Rows are inserted by admins and
// never updated through the API.
type CitizenStore interface {
	InsertCitizen(ctx context.Context, citizen models.Citizen) error
	// SearchCitizens matches the national ID exactly and every non-empty name
	// as a case-insensitive substring, ordered by insertion.
	SearchCitizens(ctx context.Context, query models.CitizenQuery) ([]models.Citizen, error)
}

type Store interface {
	UserStore
	AuditStore
	CitizenStore
	Close() error
}

// LikePattern wraps s for a substring LIKE match, escaping the wildcards with
// a backslash.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}

