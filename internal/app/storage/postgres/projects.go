package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewire/pulse/internal/domain/project"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, domain, key_hash, key_prefix, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OwnerID, p.Name, p.Domain, p.KeyHash, p.KeyPrefix, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return project.Project{}, pulseerr.Conflict("project key collision, retry")
		}
		return project.Project{}, pulseerr.Internal("create project", err)
	}
	return p, nil
}

func (s *Store) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var p project.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, owner_id, name, domain, key_hash, key_prefix, created_at, updated_at
		FROM projects WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, pulseerr.NotFound("project", id)
	}
	if err != nil {
		return project.Project{}, pulseerr.Internal("get project by id", err)
	}
	return p, nil
}

// GetProjectByKeyHash resolves a project from an already-hashed project key.
// Absence is surfaced as NotFound; the ingest coordinator maps that to
// Unauthorized without distinguishing "unknown key" from any other failure
// (spec §7: never disclose which factor failed).
func (s *Store) GetProjectByKeyHash(ctx context.Context, keyHash string) (project.Project, error) {
	var p project.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, owner_id, name, domain, key_hash, key_prefix, created_at, updated_at
		FROM projects WHERE key_hash = $1
	`, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, pulseerr.NotFound("project", "")
	}
	if err != nil {
		return project.Project{}, pulseerr.Internal("get project by key hash", err)
	}
	return p, nil
}

// RotateProjectKey atomically replaces (key_hash, key_prefix), invalidating
// the prior key immediately (spec §3).
func (s *Store) RotateProjectKey(ctx context.Context, id, newKeyHash, newKeyPrefix string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET key_hash = $2, key_prefix = $3, updated_at = $4
		WHERE id = $1
	`, id, newKeyHash, newKeyPrefix, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return pulseerr.Conflict("project key collision, retry")
		}
		return pulseerr.Internal("rotate project key", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pulseerr.NotFound("project", id)
	}
	return nil
}

func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string) ([]project.Project, error) {
	var rows []project.Project
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, owner_id, name, domain, key_hash, key_prefix, created_at, updated_at
		FROM projects WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, pulseerr.Internal("list projects", err)
	}
	return rows, nil
}
