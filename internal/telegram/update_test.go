package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdateTextMessage(t *testing.T) {
	body := []byte(`{"update_id":10,"message":{"message_id":1,"date":0,
		"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice"},
		"chat":{"id":42,"type":"private"},"text":"/start"}}`)

	u, ok, err := ParseUpdate(body)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 10, u.UpdateID)
	assert.Equal(t, int64(42), u.UserID)
	assert.Equal(t, int64(42), u.ChatID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "/start", u.Text)
	assert.False(t, u.IsCallback())
	assert.False(t, u.IsPhoto())
}

func TestParseUpdatePhotoPicksLargest(t *testing.T) {
	body := []byte(`{"update_id":11,"message":{"message_id":2,"date":0,
		"from":{"id":42,"is_bot":false,"first_name":"A"},
		"chat":{"id":42,"type":"private"},
		"photo":[{"file_id":"small","file_unique_id":"s","width":90,"height":90},
		         {"file_id":"large","file_unique_id":"l","width":1280,"height":1280}]}}`)

	u, ok, err := ParseUpdate(body)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, u.IsPhoto())
	assert.Equal(t, "large", u.PhotoFileID)
}

func TestParseUpdateCallback(t *testing.T) {
	body := []byte(`{"update_id":12,"callback_query":{"id":"cb1",
		"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice"},
		"message":{"message_id":3,"date":0,"chat":{"id":4242,"type":"private"}},
		"data":"renew"}}`)

	u, ok, err := ParseUpdate(body)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, u.IsCallback())
	assert.Equal(t, "cb1", u.CallbackID)
	assert.Equal(t, "renew", u.CallbackData)
	assert.Equal(t, int64(4242), u.ChatID)
}

func TestParseUpdateInvalidJSON(t *testing.T) {
	_, _, err := ParseUpdate([]byte("{not json"))
	assert.Error(t, err)
}

func TestFromAPIIgnoresUnsupported(t *testing.T) {
	_, ok := FromAPI(tgbotapi.Update{UpdateID: 1})
	assert.False(t, ok)

	_, ok = FromAPI(tgbotapi.Update{UpdateID: 2, ChannelPost: &tgbotapi.Message{Text: "x"}})
	assert.False(t, ok)

	// сообщение без текста и фото (например, стикер)
	_, ok = FromAPI(tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1},
	}})
	assert.False(t, ok)
}
