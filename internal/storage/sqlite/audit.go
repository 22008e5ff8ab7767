package sqlite

import (
	"context"
	"fmt"
	"time"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const auditSelect = `
	SELECT a.id, a.user_id, u.username, a.action, a.details,
		COALESCE(a.ip_address, ''), COALESCE(a.user_agent, ''), a.created_at
	FROM audit_logs a
	LEFT JOIN users u ON a.user_id = u.id`

func (s *Store) InsertAuditLog(ctx context.Context, entry models.AuditLog) (models.AuditLog, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, details, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Action, entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return models.AuditLog{}, fmt.Errorf("failed to insert audit log: %w", err)
	}
	entry.ID, err = result.LastInsertId()
	if err != nil {
		return models.AuditLog{}, fmt.Errorf("failed to read audit log id: %w", err)
	}
	return entry, nil
}

func (s *Store) ListAuditLogs(ctx context.Context, page models.PageRequest) ([]models.AuditLog, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	logs, err := s.queryAuditLogs(ctx,
		auditSelect+" ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?",
		page.PerPage, page.Offset(),
	)
	return logs, total, err
}

func (s *Store) ListUserAuditLogs(ctx context.Context, userID int64, page models.PageRequest) ([]models.AuditLog, int, error) {
	page = page.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	logs, err := s.queryAuditLogs(ctx,
		auditSelect+" WHERE a.user_id = ? ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?",
		userID, page.PerPage, page.Offset(),
	)
	return logs, total, err
}

func (s *Store) ListRecentByAction(ctx context.Context, action string, userID *int64, limit int) ([]models.AuditLog, error) {
	if userID == nil {
		return s.queryAuditLogs(ctx,
			auditSelect+" WHERE a.action = ? ORDER BY a.created_at DESC, a.id DESC LIMIT ?",
			action, limit,
		)
	}
	return s.queryAuditLogs(ctx,
		auditSelect+" WHERE a.action = ? AND a.user_id = ? ORDER BY a.created_at DESC, a.id DESC LIMIT ?",
		action, *userID, limit,
	)
}

func (s *Store) CountAuditLogsPerUser(ctx context.Context) ([]models.UserAuditCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.is_admin, u.is_active, COUNT(a.id) AS log_count
		FROM users u
		LEFT JOIN audit_logs a ON a.user_id = u.id
		GROUP BY u.id, u.username, u.display_name, u.is_admin, u.is_active
		ORDER BY log_count DESC, u.username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs per user: %w", err)
	}
	defer rows.Close()

	counts := []models.UserAuditCount{}
	for rows.Next() {
		var c models.UserAuditCount
		if err := rows.Scan(&c.UserID, &c.Username, &c.DisplayName, &c.IsAdmin, &c.IsActive, &c.LogCount); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) queryAuditLogs(ctx context.Context, query string, args ...any) ([]models.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.Username, &log.Action, &log.Details,
			&log.IPAddress, &log.UserAgent, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
