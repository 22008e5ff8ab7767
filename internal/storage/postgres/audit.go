package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"civilregistry/internal/models"
)

const auditSelect = `
	SELECT a.id, a.user_id, u.username, a.action, a.details,
		COALESCE(a.ip_address, ''), COALESCE(a.user_agent, ''), a.created_at
	FROM audit_logs a
	LEFT JOIN users u ON a.user_id = u.id`

// InsertAuditLog appends one entry to the audit trail.
func (s *Store) InsertAuditLog(ctx context.Context, entry models.AuditLog) (models.AuditLog, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO audit_logs (user_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := s.pool.QueryRow(ctx, query,
		entry.UserID, entry.Action, entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return models.AuditLog{}, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

func (s *Store) ListAuditLogs(ctx context.Context, page models.PageRequest) ([]models.AuditLog, int, error) {
	page = page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	logs, err := s.queryAuditLogs(ctx,
		auditSelect+" ORDER BY a.created_at DESC, a.id DESC LIMIT $1 OFFSET $2",
		page.PerPage, page.Offset())
	return logs, total, err
}

func (s *Store) ListUserAuditLogs(ctx context.Context, userID int64, page models.PageRequest) ([]models.AuditLog, int, error) {
	page = page.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	logs, err := s.queryAuditLogs(ctx,
		auditSelect+" WHERE a.user_id = $1 ORDER BY a.created_at DESC, a.id DESC LIMIT $2 OFFSET $3",
		userID, page.PerPage, page.Offset())
	return logs, total, err
}

func (s *Store) ListRecentByAction(ctx context.Context, action string, userID *int64, limit int) ([]models.AuditLog, error) {
	return s.queryAuditLogs(ctx,
		auditSelect+` WHERE a.action = $1 AND ($2::BIGINT IS NULL OR a.user_id = $2)
		ORDER BY a.created_at DESC, a.id DESC LIMIT $3`,
		action, userID, limit)
}

func (s *Store) CountAuditLogsPerUser(ctx context.Context) ([]models.UserAuditCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.display_name, u.is_admin, u.is_active, COUNT(a.id) AS log_count
		FROM users u
		LEFT JOIN audit_logs a ON a.user_id = u.id
		GROUP BY u.id
		ORDER BY log_count DESC, u.username ASC`)
	if err != nil {
		return nil, fmt.Errorf("count audit logs per user: %w", err)
	}
	defer rows.Close()

	counts := []models.UserAuditCount{}
	for rows.Next() {
		var c models.UserAuditCount
		if err := rows.Scan(&c.UserID, &c.Username, &c.DisplayName, &c.IsAdmin, &c.IsActive, &c.LogCount); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Store) queryAuditLogs(ctx context.Context, query string, args ...any) ([]models.AuditLog, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditLog, error) {
		var log models.AuditLog
		err := row.Scan(&log.ID, &log.UserID, &log.Username, &log.Action, &log.Details,
			&log.IPAddress, &log.UserAgent, &log.CreatedAt)
		return log, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
