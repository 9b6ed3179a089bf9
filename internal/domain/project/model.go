// Package project holds the Project domain model: the tenant boundary for
// events, rollups, and credentials (spec §3).
package project

import "time"

// Project is exclusively owned by its creating user. key_hash is a
// cryptographic digest of the plaintext project key; the plaintext is never
// persisted. key_prefix is the first few characters of the plaintext, kept
// only for UI recognition.
type Project struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Domain    *string   `db:"domain"`
	KeyHash   string    `db:"key_hash"`
	KeyPrefix string    `db:"key_prefix"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
