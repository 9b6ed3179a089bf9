package accounts

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/user"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type fakeUsers struct {
	storage.UserStore
	byEmail map[string]user.User
	nextID  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]user.User)}
}

func (f *fakeUsers) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	f.nextID++
	u.ID = "user-" + strconv.Itoa(f.nextID)
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return user.User{}, pulseerr.NotFound("user", email)
	}
	return u, nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (user.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, pulseerr.NotFound("user", id)
}

func newTestService(t *testing.T) (*Service, *fakeUsers) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	credentials := auth.NewCredentialStore(client, time.Hour, 24*time.Hour, 5, 15*time.Minute)
	tokens := auth.NewTokenManager("test-secret-at-least-32-bytes-long")
	users := newFakeUsers()

	return New(users, nil, credentials, tokens, time.Hour, 24*time.Hour, nil), users
}

func TestRegisterThenLoginSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	loggedIn, pair, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, u.ID, loggedIn.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestLoginWithWrongPasswordIsUnauthorized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob@example.com", "correct-horse-battery")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "bob@example.com", "wrong-password")
	require.Error(t, err)
	require.Equal(t, pulseerr.KindUnauthorized, pulseerr.KindOf(err))
}

func TestValidateAccessAcceptsFreshlyIssuedToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol@example.com", "another-strong-pass")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "carol@example.com", "another-strong-pass")
	require.NoError(t, err)

	userID, err := svc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, userID)
}

func TestRefreshRotatesAndInvalidatesOldRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dave@example.com", "yet-another-strong-pass")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "dave@example.com", "yet-another-strong-pass")
	require.NoError(t, err)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, newPair.AccessToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err, "a rotated-out refresh token must not be usable again")

	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	require.Error(t, err, "the prior access token must not remain valid after refresh")
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "erin@example.com", "super-strong-pass-1")
	require.NoError(t, err)
	u, pair, err := svc.Login(ctx, "erin@example.com", "super-strong-pass-1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, u.ID, ""))

	_, err = svc.ValidateAccess(ctx, pair.AccessToken)
	require.Error(t, err, "logout must revoke outstanding access tokens")
}
