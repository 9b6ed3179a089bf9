package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const projectKeyPrefixLen = 12

// GenerateProjectKey returns a fresh opaque project key ("proj_" + 32 random
// bytes, base64url-encoded) along with its UI-recognition prefix. The
// plaintext is returned exactly once by the caller (project creation /
// rotation); only HashKey's digest is ever persisted.
func GenerateProjectKey() (plaintext string, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate project key: %w", err)
	}
	plaintext = "proj_" + base64.RawURLEncoding.EncodeToString(buf)
	prefix = plaintext[:projectKeyPrefixLen]
	return plaintext, prefix, nil
}

// HashProjectKey returns the stable digest of a plaintext project key used
// as the unique, indexable key_hash column. SHA3-256 is used rather than a
// slow password hash because project keys are high-entropy random tokens,
// not user-chosen secrets — the lookup must be a fast equality match.
func HashProjectKey(plaintext string) string {
	sum := sha3.Sum256([]byte(plaintext))
	return fmt.Sprintf("%x", sum)
}
