package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// IPHasher computes ip_hash = HMAC(daily_secret, client_ip), where
// daily_secret is derived from a service-wide master secret and the current
// UTC date via HKDF, so hashes for the same IP do not correlate across days
// (spec §3/§4.1).
type IPHasher struct {
	masterSecret []byte
}

func NewIPHasher(masterSecret string) *IPHasher {
	return &IPHasher{masterSecret: []byte(masterSecret)}
}

// Hash returns the hex-encoded HMAC-SHA256 of ip under the daily secret for
// at's UTC date.
func (h *IPHasher) Hash(ip string, at time.Time) string {
	daily := h.dailySecret(at)
	mac := hmac.New(sha256.New, daily)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *IPHasher) dailySecret(at time.Time) []byte {
	dateInfo := []byte(at.UTC().Format("2006-01-02"))
	kdf := hkdf.New(sha3.New256, h.masterSecret, nil, dateInfo)
	out := make([]byte, 32)
	_, _ = kdf.Read(out)
	return out
}
