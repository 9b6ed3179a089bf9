// Package projects implements project creation, key rotation, and listing,
// scoped to their owning user (spec §3, §6).
package projects

import (
	"context"

	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/audit"
	"github.com/pulsewire/pulse/internal/domain/project"
	"github.com/pulsewire/pulse/internal/pulseerr"
	"github.com/pulsewire/pulse/pkg/logger"
)

// Service implements the project management operations.
type Service struct {
	projects storage.ProjectStore
	audit    storage.AuditStore
	log      *logger.Logger
}

func New(projectStore storage.ProjectStore, auditStore storage.AuditStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	return &Service{projects: projectStore, audit: auditStore, log: log}
}

// Create generates a fresh project key, persists its digest, and returns the
// plaintext key exactly once.
func (s *Service) Create(ctx context.Context, ownerID, name string, domain *string) (project.Project, string, error) {
	plaintext, prefix, err := auth.GenerateProjectKey()
	if err != nil {
		return project.Project{}, "", pulseerr.Internal("generate project key", err)
	}

	p, err := s.projects.CreateProject(ctx, project.Project{
		OwnerID:   ownerID,
		Name:      name,
		Domain:    domain,
		KeyHash:   auth.HashProjectKey(plaintext),
		KeyPrefix: prefix,
	})
	if err != nil {
		return project.Project{}, "", err
	}
	s.logAudit(ctx, ownerID, "project.create", p.ID)
	return p, plaintext, nil
}

// RotateKey replaces a project's key after verifying ownership, returning the
// new plaintext key exactly once.
func (s *Service) RotateKey(ctx context.Context, ownerID, projectID string) (string, error) {
	if err := s.requireOwner(ctx, ownerID, projectID); err != nil {
		return "", err
	}

	plaintext, prefix, err := auth.GenerateProjectKey()
	if err != nil {
		return "", pulseerr.Internal("generate project key", err)
	}
	if err := s.projects.RotateProjectKey(ctx, projectID, auth.HashProjectKey(plaintext), prefix); err != nil {
		return "", err
	}
	s.logAudit(ctx, ownerID, "project.rotate_key", projectID)
	return plaintext, nil
}

// List returns every project owned by a user.
func (s *Service) List(ctx context.Context, ownerID string) ([]project.Project, error) {
	return s.projects.ListProjectsByOwner(ctx, ownerID)
}

// Get resolves a project, enforcing ownership. Cross-tenant access is
// surfaced as NotFound, not Forbidden, to avoid existence probing (spec §7).
func (s *Service) Get(ctx context.Context, ownerID, projectID string) (project.Project, error) {
	p, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return project.Project{}, err
	}
	if p.OwnerID != ownerID {
		return project.Project{}, pulseerr.NotFound("project", projectID)
	}
	return p, nil
}

func (s *Service) requireOwner(ctx context.Context, ownerID, projectID string) error {
	_, err := s.Get(ctx, ownerID, projectID)
	return err
}

func (s *Service) logAudit(ctx context.Context, actorID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	id := resourceID
	actor := actorID
	if err := s.audit.Append(ctx, audit.Entry{ActorUserID: &actor, Action: action, Resource: "project", ResourceID: &id}); err != nil {
		s.log.Warnf("append audit entry for %s: %v", action, err)
	}
}
