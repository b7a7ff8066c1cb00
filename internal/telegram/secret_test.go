package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookSecret(t *testing.T) {
	a := WebhookSecret("key", "123:token")
	b := WebhookSecret("key", "123:token")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]+$", a)
	assert.NotEqual(t, a, WebhookSecret("key", "456:other"))
	assert.NotEqual(t, a, WebhookSecret("other-key", "123:token"))
}

func TestVerifySecret(t *testing.T) {
	secret := WebhookSecret("key", "123:token")

	assert.True(t, VerifySecret("key", "123:token", secret))
	assert.False(t, VerifySecret("key", "123:token", ""))
	assert.False(t, VerifySecret("key", "123:token", secret[:63]))
	assert.False(t, VerifySecret("key", "456:other", secret))
}
