package projects

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/project"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type fakeProjects struct {
	storage.ProjectStore
	byID   map[string]project.Project
	nextID int
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{byID: make(map[string]project.Project)}
}

func (f *fakeProjects) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	f.nextID++
	p.ID = "proj-" + strconv.Itoa(f.nextID)
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeProjects) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return project.Project{}, pulseerr.NotFound("project", id)
	}
	return p, nil
}

func (f *fakeProjects) RotateProjectKey(ctx context.Context, id, newKeyHash, newKeyPrefix string) error {
	p, ok := f.byID[id]
	if !ok {
		return pulseerr.NotFound("project", id)
	}
	p.KeyHash = newKeyHash
	p.KeyPrefix = newKeyPrefix
	f.byID[id] = p
	return nil
}

func (f *fakeProjects) ListProjectsByOwner(ctx context.Context, ownerID string) ([]project.Project, error) {
	var out []project.Project
	for _, p := range f.byID {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateReturnsPlaintextKeyOnceAndPersistsOnlyTheHash(t *testing.T) {
	store := newFakeProjects()
	svc := New(store, nil, nil)

	p, plaintext, err := svc.Create(context.Background(), "owner-1", "Web App", nil)
	require.NoError(t, err)
	require.NotEmpty(t, plaintext)
	require.NotEqual(t, plaintext, p.KeyHash)
	require.NotEmpty(t, p.KeyHash)
}

func TestGetCrossTenantAccessIsNotFoundNotForbidden(t *testing.T) {
	store := newFakeProjects()
	svc := New(store, nil, nil)

	p, _, err := svc.Create(context.Background(), "owner-1", "Web App", nil)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "owner-2", p.ID)
	require.Error(t, err)
	require.Equal(t, pulseerr.KindNotFound, pulseerr.KindOf(err))
}

func TestRotateKeyRejectsNonOwner(t *testing.T) {
	store := newFakeProjects()
	svc := New(store, nil, nil)

	p, original, err := svc.Create(context.Background(), "owner-1", "Web App", nil)
	require.NoError(t, err)

	_, err = svc.RotateKey(context.Background(), "owner-2", p.ID)
	require.Error(t, err)

	rotated, err := svc.RotateKey(context.Background(), "owner-1", p.ID)
	require.NoError(t, err)
	require.NotEqual(t, original, rotated)
}

func TestListOnlyReturnsOwnedProjects(t *testing.T) {
	store := newFakeProjects()
	svc := New(store, nil, nil)

	_, _, err := svc.Create(context.Background(), "owner-1", "A", nil)
	require.NoError(t, err)
	_, _, err = svc.Create(context.Background(), "owner-2", "B", nil)
	require.NoError(t, err)

	owned, err := svc.List(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, "A", owned[0].Name)
}
