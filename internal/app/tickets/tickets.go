// Package tickets issues and consumes the single-use, 30-second sockets
// handshake tickets described in spec §4.7.
package tickets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Authenticator issues opaque tickets keyed to a user id and consumes them
// exactly once.
type Authenticator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAuthenticator(client *redis.Client, ttl time.Duration) *Authenticator {
	return &Authenticator{client: client, ttl: ttl}
}

func ticketKey(ticket string) string { return "ws-ticket:" + ticket }

// Issue generates a random opaque ticket, stores it with the configured TTL,
// and returns it.
func (a *Authenticator) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ticket: %w", err)
	}
	ticket := base64.RawURLEncoding.EncodeToString(buf)
	if err := a.client.Set(ctx, ticketKey(ticket), userID, a.ttl).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Consume atomically reads and deletes the ticket, returning the owning user
// id. The second return value is false if the ticket was never issued, has
// expired, or was already consumed — tickets are single-use even within
// their TTL.
func (a *Authenticator) Consume(ctx context.Context, ticket string) (string, bool) {
	userID, err := a.client.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		return "", false
	}
	return userID, true
}
