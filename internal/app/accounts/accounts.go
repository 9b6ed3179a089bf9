// Package accounts implements user registration, login, token refresh,
// logout, and account lookup (spec §3, §6 "Authentication").
package accounts

import (
	"context"
	"time"

	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/audit"
	"github.com/pulsewire/pulse/internal/domain/user"
	"github.com/pulsewire/pulse/internal/pulseerr"
	"github.com/pulsewire/pulse/pkg/logger"
)

// TokenPair is one issued access/refresh pair, with enough metadata for the
// HTTP layer to set cookies and body fields.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service implements the account lifecycle operations.
type Service struct {
	users       storage.UserStore
	audit       storage.AuditStore
	credentials *auth.CredentialStore
	tokens      *auth.TokenManager
	accessTTL   time.Duration
	refreshTTL  time.Duration
	log         *logger.Logger
}

func New(users storage.UserStore, auditStore storage.AuditStore, credentials *auth.CredentialStore, tokens *auth.TokenManager, accessTTL, refreshTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{
		users:       users,
		audit:       auditStore,
		credentials: credentials,
		tokens:      tokens,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		log:         log,
	}
}

// Register creates a user with a bcrypt-hashed password. A duplicate email
// surfaces as Conflict (spec §7).
func (s *Service) Register(ctx context.Context, email, password string) (user.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return user.User{}, pulseerr.Internal("hash password", err)
	}
	u, err := s.users.CreateUser(ctx, user.User{Email: email, PasswordHash: hash})
	if err != nil {
		return user.User{}, err
	}
	s.logAudit(ctx, &u.ID, "user.register", "user", &u.ID, nil)
	return u, nil
}

// Login verifies credentials under the lockout policy and issues a fresh
// token pair on success. Failures never disclose whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, TokenPair, error) {
	if locked, err := s.credentials.IsLockedOut(ctx, email); err == nil && locked {
		return user.User{}, TokenPair{}, pulseerr.Unauthorized("")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil || !auth.VerifyPassword(u.PasswordHash, password) {
		if lerr := s.recordFailure(ctx, email); lerr != nil {
			s.log.Warnf("record login failure for %s: %v", email, lerr)
		}
		return user.User{}, TokenPair{}, pulseerr.Unauthorized("")
	}

	if err := s.credentials.ClearLockout(ctx, email); err != nil {
		s.log.Warnf("clear lockout for %s: %v", email, err)
	}

	pair, err := s.issuePair(ctx, u.ID)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	s.logAudit(ctx, &u.ID, "user.login", "user", &u.ID, nil)
	return u, pair, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) error {
	_, err := s.credentials.RecordLoginFailure(ctx, email)
	return err
}

// Refresh validates a refresh token, rotates both tokens, and revokes the
// prior pair entirely: both the refresh token presented and every
// outstanding access token for the user, since the caller has no way to
// name the specific access jti it is replacing (spec §6, testable property
// "old T is no longer valid").
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken, auth.TokenRefresh)
	if err != nil {
		return TokenPair{}, pulseerr.Unauthorized("")
	}
	userID, ok := s.credentials.ValidateRefresh(ctx, claims.ID)
	if !ok {
		return TokenPair{}, pulseerr.Unauthorized("")
	}

	if err := s.credentials.RevokeAllForUser(ctx, userID); err != nil {
		s.log.Warnf("revoke prior token pair for %s: %v", userID, err)
	}

	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes the refresh token and every access token for the user.
func (s *Service) Logout(ctx context.Context, userID, refreshJTI string) error {
	if refreshJTI != "" {
		if err := s.credentials.RevokeRefresh(ctx, userID, refreshJTI); err != nil {
			s.log.Warnf("revoke refresh token on logout for %s: %v", userID, err)
		}
	}
	if err := s.credentials.RevokeAllForUser(ctx, userID); err != nil {
		s.log.Warnf("revoke all tokens on logout for %s: %v", userID, err)
	}
	return nil
}

// Me resolves the authenticated user by id.
func (s *Service) Me(ctx context.Context, userID string) (user.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// ValidateAccess authenticates an access token against both its signature
// and the credential store's revocation record, returning the owning user
// id. Presence in the store is authoritative (spec §9).
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.tokens.Validate(accessToken, auth.TokenAccess)
	if err != nil {
		return "", pulseerr.Unauthorized("")
	}
	userID, ok := s.credentials.ValidateAccess(ctx, claims.ID)
	if !ok {
		return "", pulseerr.Unauthorized("")
	}
	return userID, nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	access, accessJTI, accessExp, err := s.tokens.Issue(userID, auth.TokenAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, pulseerr.Internal("issue access token", err)
	}
	refresh, refreshJTI, refreshExp, err := s.tokens.Issue(userID, auth.TokenRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, pulseerr.Internal("issue refresh token", err)
	}
	if err := s.credentials.StoreAccess(ctx, userID, accessJTI); err != nil {
		return TokenPair{}, pulseerr.Internal("store access token", err)
	}
	if err := s.credentials.StoreRefresh(ctx, userID, refreshJTI); err != nil {
		return TokenPair{}, pulseerr.Internal("store refresh token", err)
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) logAudit(ctx context.Context, actorID *string, action, resource string, resourceID *string, detail []byte) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, audit.Entry{ActorUserID: actorID, Action: action, Resource: resource, ResourceID: resourceID, Detail: detail}); err != nil {
		s.log.Warnf("append audit entry for %s: %v", action, err)
	}
}
