package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HeaderName carries the hex MAC on outbound and inbound webhooks.
const HeaderName = "X-Signature"

var (
	// ErrNoSecret means no signing secret was configured.
	ErrNoSecret = errors.New("signing secret is not configured")
	// ErrMissingSignature means the request carried no signature header.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature means the signature did not match the payload.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer computes and checks HMAC-SHA256 signatures over raw payload bytes.
type Signer struct {
	secret []byte
}

// NewSigner refuses an empty secret; callers must not fall back to unsigned payloads.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex-encoded HMAC of payload.
func (s *Signer) Sign(payload []byte) string {
	return hex.EncodeToString(s.mac(payload))
}

// Verify reports whether candidate is the MAC of payload. The comparison is constant time.
func (s *Signer) Verify(payload []byte, candidate string) bool {
	return s.Check(payload, candidate) == nil
}

// Check is Verify with the reason for a rejection.
func (s *Signer) Check(payload []byte, candidate string) error {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	candidate = strings.TrimPrefix(candidate, "sha256=")
	if candidate == "" {
		return ErrMissingSignature
	}

	decoded, err := hex.DecodeString(candidate)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(s.mac(payload), decoded) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Signer) mac(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
