package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Signer authenticates requests to the venue: an HMAC-SHA256 signature
// over the canonical query-encoded payload, hex encoded, plus the API
// key sent as a header. Keys are held as []byte so they can be wiped.
type Signer struct {
	apiKey    []byte
	secretKey []byte
}

// NewSigner creates a signer from the configured key pair.
func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		secretKey: []byte(secretKey),
	}
}

// Sign returns the signature for the given request parameters.
// url.Values.Encode sorts by key, which is the canonical form the venue
// verifies against.
func (s *Signer) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIKey returns the header value identifying the account.
func (s *Signer) APIKey() string {
	return string(s.apiKey)
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipe(s.apiKey)
	wipe(s.secretKey)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
