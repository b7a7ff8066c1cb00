package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/testutil"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyRetriesTransientErrors(t *testing.T) {
	bot := testutil.NewBot()
	bot.SendErr = errors.New("connection reset")
	bot.SendFailures = 1
	n := NewNotifier(&testutil.Provider{Client: bot}, 3*time.Second, metrics.Nop{}, logger.NewNop())

	err := n.Notify(context.Background(), &domain.Project{SupportContact: "@help"}, &domain.Subscriber{ChatID: 5},
		domain.Notification{Action: domain.ActionKicked})
	require.NoError(t, err)

	assert.Equal(t, 2, bot.SendCalls())
	require.Len(t, bot.Sent(), 1)
	assert.Equal(t, int64(5), bot.Sent()[0].ChatID)
	assert.Contains(t, bot.Sent()[0].Text, "@help")
}

func TestNotifyDoesNotRetryPermanentErrors(t *testing.T) {
	bot := testutil.NewBot()
	bot.SendErr = domain.NewExternalDependencyError("telegram", "sendMessage",
		&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"})
	n := NewNotifier(&testutil.Provider{Client: bot}, 3*time.Second, metrics.Nop{}, logger.NewNop())

	err := n.Notify(context.Background(), &domain.Project{}, &domain.Subscriber{ChatID: 5},
		domain.Notification{Action: domain.ActionKicked})
	assert.Error(t, err)
	assert.Equal(t, 1, bot.SendCalls())
}

func TestNotifyUnknownAction(t *testing.T) {
	bot := testutil.NewBot()
	n := NewNotifier(&testutil.Provider{Client: bot}, time.Second, metrics.Nop{}, logger.NewNop())

	err := n.Notify(context.Background(), &domain.Project{}, &domain.Subscriber{}, domain.Notification{Action: "party"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, bot.SendCalls())
}

func TestNotifyProviderFailure(t *testing.T) {
	n := NewNotifier(&testutil.Provider{Err: errors.New("getMe failed")}, time.Second, metrics.Nop{}, logger.NewNop())

	err := n.Notify(context.Background(), &domain.Project{}, &domain.Subscriber{}, domain.Notification{Action: domain.ActionKicked})
	assert.Error(t, err)
}
