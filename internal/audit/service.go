package audit

import (
	"context"
	"errors"
	"fmt"

	"civilregistry/internal/apperr"
	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

const RecentSearchLimit = 10

// Service answers the administrative audit queries.
type Service struct {
	logs  storage.AuditStore
	users storage.UserStore
}

func NewService(logs storage.AuditStore, users storage.UserStore) *Service {
	return &Service{logs: logs, users: users}
}

func (s *Service) List(ctx context.Context, page models.PageRequest) (models.Page[models.AuditLog], error) {
	logs, total, err := s.logs.ListAuditLogs(ctx, page)
	if err != nil {
		return models.Page[models.AuditLog]{}, fmt.Errorf("list audit logs: %w", err)
	}
	return models.NewPage(logs, page, total), nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64, page models.PageRequest) (models.Page[models.AuditLog], error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return models.Page[models.AuditLog]{}, err
	}
	logs, total, err := s.logs.ListUserAuditLogs(ctx, userID, page)
	if err != nil {
		return models.Page[models.AuditLog]{}, fmt.Errorf("list user audit logs: %w", err)
	}
	return models.NewPage(logs, page, total), nil
}

// RecentSearches returns the latest SEARCH entries; a nil userID spans all users.
func (s *Service) RecentSearches(ctx context.Context, userID *int64) ([]models.AuditLog, error) {
	if userID != nil {
		if err := s.ensureUser(ctx, *userID); err != nil {
			return nil, err
		}
	}
	logs, err := s.logs.ListRecentByAction(ctx, string(ActionSearch), userID, RecentSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	return logs, nil
}

func (s *Service) CountsPerUser(ctx context.Context) ([]models.UserAuditCount, error) {
	counts, err := s.logs.CountAuditLogsPerUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("count audit logs per user: %w", err)
	}
	return counts, nil
}

func (s *Service) ensureUser(ctx context.Context, userID int64) error {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "المستخدم غير موجود")
		}
		return fmt.Errorf("get user: %w", err)
	}
	return nil
}
