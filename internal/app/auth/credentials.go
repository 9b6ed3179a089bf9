package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CredentialStore holds TTL-bounded credential artifacts in Redis:
// access-token:<jti> -> user_id, refresh-token:<jti> -> user_id, a secondary
// per-user index (user-access:<user>:<jti>, user-refresh:<user>:<jti>) for
// bulk revocation, and lockout:<email> -> failure_count. Presence-as-validity
// is the source of truth: absence of the token key means revoked, regardless
// of what the JWT itself claims about expiry (spec §3, §9).
type CredentialStore struct {
	client           *redis.Client
	accessTTL        time.Duration
	refreshTTL       time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration
}

func NewCredentialStore(client *redis.Client, accessTTL, refreshTTL time.Duration, lockoutThreshold int, lockoutWindow time.Duration) *CredentialStore {
	return &CredentialStore{
		client:           client,
		accessTTL:        accessTTL,
		refreshTTL:       refreshTTL,
		lockoutThreshold: lockoutThreshold,
		lockoutWindow:    lockoutWindow,
	}
}

func accessKey(jti string) string       { return "access-token:" + jti }
func refreshKey(jti string) string      { return "refresh-token:" + jti }
func userAccessKey(user, jti string) string  { return fmt.Sprintf("user-access:%s:%s", user, jti) }
func userRefreshKey(user, jti string) string { return fmt.Sprintf("user-refresh:%s:%s", user, jti) }
func lockoutKey(email string) string    { return "lockout:" + email }

// StoreAccess registers a freshly issued access token as valid.
func (s *CredentialStore) StoreAccess(ctx context.Context, userID, jti string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, accessKey(jti), userID, s.accessTTL)
	pipe.Set(ctx, userAccessKey(userID, jti), "", s.accessTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// StoreRefresh registers a freshly issued refresh token as valid.
func (s *CredentialStore) StoreRefresh(ctx context.Context, userID, jti string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKey(jti), userID, s.refreshTTL)
	pipe.Set(ctx, userRefreshKey(userID, jti), "", s.refreshTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ValidateAccess returns the owning user id if jti is still present (not
// revoked, not expired).
func (s *CredentialStore) ValidateAccess(ctx context.Context, jti string) (string, bool) {
	userID, err := s.client.Get(ctx, accessKey(jti)).Result()
	if err != nil {
		return "", false
	}
	return userID, true
}

// ValidateRefresh returns the owning user id if jti is still present.
func (s *CredentialStore) ValidateRefresh(ctx context.Context, jti string) (string, bool) {
	userID, err := s.client.Get(ctx, refreshKey(jti)).Result()
	if err != nil {
		return "", false
	}
	return userID, true
}

// RevokeRefresh deletes a single refresh token (used by logout to invalidate
// the presented refresh token immediately).
func (s *CredentialStore) RevokeRefresh(ctx context.Context, userID, jti string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, refreshKey(jti))
	pipe.Del(ctx, userRefreshKey(userID, jti))
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForUser scans the per-user secondary indexes and deletes every
// access and refresh token the user currently holds — used by logout and by
// token refresh. Broker errors here are logged by the caller, not raised:
// a token that cannot be actively revoked will still expire on its own TTL.
func (s *CredentialStore) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.revokeIndexed(ctx, fmt.Sprintf("user-access:%s:*", userID), "user-access:"+userID+":", "access-token:"); err != nil {
		return err
	}
	return s.revokeIndexed(ctx, fmt.Sprintf("user-refresh:%s:*", userID), "user-refresh:"+userID+":", "refresh-token:")
}

func (s *CredentialStore) revokeIndexed(ctx context.Context, pattern, indexPrefix, tokenPrefix string) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		key := iter.Val()
		keys = append(keys, key)
		jti := key[len(indexPrefix):]
		keys = append(keys, tokenPrefix+jti)
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// RecordLoginFailure increments the failure count for email within the
// lockout window and reports whether the account is now locked out.
func (s *CredentialStore) RecordLoginFailure(ctx context.Context, email string) (locked bool, err error) {
	key := lockoutKey(email)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		s.client.Expire(ctx, key, s.lockoutWindow)
	}
	return count >= int64(s.lockoutThreshold), nil
}

// IsLockedOut reports whether email is currently within a lockout window.
func (s *CredentialStore) IsLockedOut(ctx context.Context, email string) (bool, error) {
	count, err := s.client.Get(ctx, lockoutKey(email)).Int64()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= int64(s.lockoutThreshold), nil
}

// ClearLockout resets the failure count on a successful login.
func (s *CredentialStore) ClearLockout(ctx context.Context, email string) error {
	return s.client.Del(ctx, lockoutKey(email)).Err()
}
