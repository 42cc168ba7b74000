package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aq2208/gorder-inventory/configs"
)

// b64Prefix marks a secret given as base64url instead of plain text.
const b64Prefix = "base64url:"

// LoadWebhookSecret returns the shared HMAC key for payment webhooks.
// Plain values are used as their UTF-8 bytes.
func LoadWebhookSecret(c configs.Config) ([]byte, error) {
	raw := c.Webhook.Secret
	if raw == "" {
		return nil, errors.New("missing webhook.secret")
	}
	if !strings.HasPrefix(raw, b64Prefix) {
		return []byte(raw), nil
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimPrefix(raw, b64Prefix), "="))
	if err != nil {
		return nil, fmt.Errorf("decode webhook.secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("webhook.secret decodes to an empty key")
	}
	return key, nil
}
