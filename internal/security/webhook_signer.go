package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrSignatureMismatch = errors.New("signature mismatch")

// WebhookSigner computes and checks hex(HMAC-SHA256(secret, "{timestamp}." + body)).
type WebhookSigner struct {
	secret []byte
}

func NewWebhookSigner(secret []byte) (*WebhookSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("webhook secret required")
	}
	return &WebhookSigner{secret: append([]byte(nil), secret...)}, nil
}

func (s *WebhookSigner) Sign(timestamp string, body []byte) string {
	return hex.EncodeToString(s.mac(timestamp, body))
}

// Verify compares the lowercase hex digest with signature exactly, in
// constant time.
func (s *WebhookSigner) Verify(timestamp string, body []byte, signature string) error {
	if !hmac.Equal([]byte(s.Sign(timestamp, body)), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (s *WebhookSigner) mac(timestamp string, body []byte) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(timestamp + "."))
	m.Write(body)
	return m.Sum(nil)
}
