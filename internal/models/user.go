package models

import "time"

// BootstrapAdminID is the first account created on an empty database. It can
// never be deactivated.
const BootstrapAdminID int64 = 1

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AuditLog struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"userId"`
	Username  *string   `json:"username"`
	Action    string    `json:"action"`
	Details   *string   `json:"details"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserAuditCount is one row of the per-user activity summary.
type UserAuditCount struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
	IsActive    bool   `json:"isActive"`
	LogCount    int    `json:"logCount"`
}
