package cache

import (
	"encoding/json"
	"testing"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	id := uuid.MustParse("7b0c2f6e-3c4a-4a57-9b43-8a1f2d6e9c11")
	assert.Equal(t, "tg:update:7b0c2f6e-3c4a-4a57-9b43-8a1f2d6e9c11:991", UpdateKey(id, 991))
	assert.Equal(t, "stripe:event:evt_123", StripeEventKey("evt_123"))
}

func TestProjectEntryKeepsBotToken(t *testing.T) {
	p := domain.Project{ID: uuid.New(), Name: "demo", BotToken: "123:abc"}

	data, err := json.Marshal(projectEntry{Project: p, BotToken: p.BotToken})
	require.NoError(t, err)

	var back projectEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "123:abc", back.BotToken)
	assert.Equal(t, "demo", back.Name)

	// сам domain.Project токен не сериализует
	plain, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "123:abc")
}
