package models

import "time"

// AuditAction identifies the audited operation.
type AuditAction string

const (
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionEnroll   AuditAction = "ENROLL"
	AuditActionWithdraw AuditAction = "WITHDRAW"
	AuditActionReset    AuditAction = "RESET"
)

// AuditLog records an administrative action for later review.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte      `db:"details" json:"details,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
