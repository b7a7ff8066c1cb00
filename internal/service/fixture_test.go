package service

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/repository/memory"
	"github.com/Dhoini/channel-access-bot/internal/testutil"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	bot       *testutil.Bot
	provider  *testutil.Provider
	publisher *testutil.Publisher
	svc       SubscriberService
	project   domain.Project
	plan      domain.Plan
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		bot:       testutil.NewBot(),
		publisher: &testutil.Publisher{},
		now:       baseTime,
	}
	f.provider = &testutil.Provider{Client: f.bot}
	f.project = domain.Project{
		ID:             uuid.New(),
		Name:           "Signals",
		BotToken:       "123:token",
		ChannelID:      -100500,
		ManualEnabled:  true,
		CardEnabled:    true,
		Currency:       "USD",
		SupportContact: "@support",
	}
	f.plan = domain.Plan{
		ID:           uuid.New(),
		ProjectID:    f.project.ID,
		Name:         "Monthly",
		PriceMinor:   1500,
		Currency:     "USD",
		DurationDays: 30,
		Active:       true,
	}
	f.store.PutProject(f.project)
	f.store.PutPlan(f.plan)

	log := logger.NewNop()
	f.svc = NewSubscriberService(Dependencies{
		Projects:    f.store.Projects(),
		Plans:       f.store.Plans(),
		Subscribers: f.store,
		Bots:        f.provider,
		Notifier:    NewNotifier(f.provider, 50*time.Millisecond, metrics.Nop{}, log),
		Publisher:   f.publisher,
		Metrics:     metrics.Nop{},
		Log:         log,
		Now:         func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) day(n int) time.Time {
	return baseTime.Add(domain.Days(n))
}

// subscriber кладёт подписчика в нужном состоянии
func (f *fixture) subscriber(t *testing.T, status domain.Status, mutate func(s *domain.Subscriber)) *domain.Subscriber {
	t.Helper()
	planID := f.plan.ID
	sub := &domain.Subscriber{
		ID:             uuid.New(),
		ProjectID:      f.project.ID,
		TelegramUserID: 4242,
		ChatID:         4242,
		Username:       "alice",
		Status:         status,
		PlanID:         &planID,
		Version:        1,
	}
	if mutate != nil {
		mutate(sub)
	}
	f.store.PutSubscriber(sub)
	return f.reload(t, sub.ID)
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.Subscriber {
	t.Helper()
	sub, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func timePtr(t time.Time) *time.Time { return &t }
