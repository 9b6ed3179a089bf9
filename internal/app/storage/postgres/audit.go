package postgres

import (
	"context"
	"time"

	"github.com/pulsewire/pulse/internal/domain/audit"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

// Append inserts one audit entry. Failures here are logged by the caller,
// not raised — audit logging must never block the operation it describes.
func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_user_id, action, resource, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ActorUserID, e.Action, e.Resource, e.ResourceID, []byte(e.Detail), time.Now().UTC())
	if err != nil {
		return pulseerr.Internal("append audit entry", err)
	}
	return nil
}
