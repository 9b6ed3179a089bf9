// Package audit holds the supplemented AuditLogEntry model (SPEC_FULL.md §3).
package audit

import (
	"encoding/json"
	"time"
)

// Entry records an operationally significant action: registration,
// successful login, project creation and key rotation. Login failures and
// lockouts are not recorded.
type Entry struct {
	ID          int64           `db:"id"`
	ActorUserID *string         `db:"actor_user_id"`
	Action      string          `db:"action"`
	Resource    string          `db:"resource"`
	ResourceID  *string         `db:"resource_id"`
	Detail      json.RawMessage `db:"detail"`
	CreatedAt   time.Time       `db:"created_at"`
}
