package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(srv *httptest.Server) *botClient {
	return &botClient{
		httpClient: srv.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    metrics.Nop{},
		log:        logger.NewNop(),
	}
}

func TestKeyboard(t *testing.T) {
	assert.Nil(t, keyboard(nil))

	kb := keyboard([][]Button{
		{{Text: "Plan", CallbackData: "plan:1"}},
		{{Text: "Pay", URL: "https://checkout.example/s"}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "plan:1", *kb.InlineKeyboard[0][0].CallbackData)
	require.NotNil(t, kb.InlineKeyboard[1][0].URL)
	assert.Equal(t, "https://checkout.example/s", *kb.InlineKeyboard[1][0].URL)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&tgbotapi.Error{Code: 403, Message: "bot was blocked by the user"}))
	assert.True(t, IsPermanent(domain.NewExternalDependencyError("telegram", "sendMessage",
		&tgbotapi.Error{Code: 400, Message: "chat not found"})))
	assert.False(t, IsPermanent(&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}))
	assert.False(t, IsPermanent(&tgbotapi.Error{Code: 502}))
	assert.False(t, IsPermanent(errors.New("connection reset")))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("image-bytes"))
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	ctx := context.Background()

	data, err := c.Download(ctx, srv.URL+"/ok", 1024)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	_, err = c.Download(ctx, srv.URL+"/big", 32)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)

	_, err = c.Download(ctx, srv.URL+"/missing", 1024)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
}

func TestRunWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := runWithContext(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = runWithContext(ctx, func() error { time.Sleep(200 * time.Millisecond); return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScrubURL(t *testing.T) {
	_, err := http.Get("http://127.0.0.1:1/bot123:SECRET/getMe")
	require.Error(t, err)

	scrubbed := scrubURL(err)
	assert.NotContains(t, scrubbed.Error(), "SECRET")
}

func TestProviderSlowTokenDoesNotBlockOthers(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/botslow/") {
			arrived <- struct{}{}
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Bot","username":"test_bot"}}`))
	}))
	defer srv.Close()

	p := NewBotProvider(Config{APIEndpoint: srv.URL + "/bot%s/%s", Timeout: 5 * time.Second}, metrics.Nop{}, logger.NewNop())

	slowDone := make(chan error, 1)
	go func() {
		_, err := p.Bot(context.Background(), "slow")
		slowDone <- err
	}()
	<-arrived

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fast, err := p.Bot(ctx, "fast")
	require.NoError(t, err)
	again, err := p.Bot(ctx, "fast")
	require.NoError(t, err)
	assert.Same(t, fast, again)

	close(release)
	require.NoError(t, <-slowDone)
}
