package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.Add(Days(n)) }

func ptr(t time.Time) *time.Time { return &t }

func TestApprovalExpiryRenewsFromCurrentExpiry(t *testing.T) {
	sub := &Subscriber{
		Status:     StatusActive,
		StartDate:  ptr(day(-20)),
		ExpiryDate: ptr(day(10)),
	}
	now := day(3)

	start, expiry := ApprovalExpiry(sub, 30, now)

	assert.Equal(t, day(40), expiry)
	assert.Equal(t, day(-20), start)
}

func TestApprovalExpiryFreshGrant(t *testing.T) {
	now := day(50)

	t.Run("expired subscriber", func(t *testing.T) {
		sub := &Subscriber{Status: StatusExpired, StartDate: ptr(day(-20)), ExpiryDate: ptr(day(10))}
		start, expiry := ApprovalExpiry(sub, 30, now)
		assert.Equal(t, now, start)
		assert.Equal(t, now.Add(Days(30)), expiry)
	})

	t.Run("new subscriber", func(t *testing.T) {
		sub := &Subscriber{Status: StatusPendingApproval}
		_, expiry := ApprovalExpiry(sub, 30, now)
		assert.Equal(t, now.Add(Days(30)), expiry)
	})

	t.Run("active but already past expiry", func(t *testing.T) {
		sub := &Subscriber{Status: StatusActive, StartDate: ptr(day(0)), ExpiryDate: ptr(day(49))}
		_, expiry := ApprovalExpiry(sub, 30, now)
		assert.Equal(t, now.Add(Days(30)), expiry)
	})
}

func TestApprovalExpiryKeepsGrantDuringRenewal(t *testing.T) {
	sub := &Subscriber{Status: StatusPendingApproval, StartDate: ptr(day(-20)), ExpiryDate: ptr(day(10))}
	_, expiry := ApprovalExpiry(sub, 30, day(5))
	assert.Equal(t, day(40), expiry)
}

func TestExtendExpiryNeverBackdates(t *testing.T) {
	now := day(3)
	assert.Equal(t, day(15), ExtendExpiry(ptr(day(10)), 5, now))
	assert.Equal(t, now.Add(Days(5)), ExtendExpiry(ptr(day(1)), 5, now))
	assert.Equal(t, now.Add(Days(5)), ExtendExpiry(nil, 5, now))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPendingPayment, StatusAwaitingProof))
	assert.True(t, CanTransition(StatusAwaitingProof, StatusPendingApproval))
	assert.True(t, CanTransition(StatusPendingApproval, StatusRejected))
	assert.True(t, CanTransition(StatusActive, StatusSuspended))
	assert.True(t, CanTransition(StatusSuspended, StatusActive))
	assert.False(t, CanTransition(StatusRejected, StatusActive))
	assert.False(t, CanTransition(StatusSuspended, StatusPendingPayment))
	assert.True(t, CanTransition(StatusPendingApproval, StatusSuspended))
	assert.False(t, CanTransition(StatusExpired, StatusSuspended))
	assert.False(t, CanTransition(StatusExpired, StatusExpired))
}

func TestHoldsAccess(t *testing.T) {
	now := day(0)
	renewing := &Subscriber{Status: StatusPendingApproval, StartDate: ptr(day(-20)), ExpiryDate: ptr(day(10))}
	assert.True(t, renewing.HoldsAccess(now))

	lapsed := &Subscriber{Status: StatusPendingApproval, StartDate: ptr(day(-40)), ExpiryDate: ptr(day(-10))}
	assert.False(t, lapsed.HoldsAccess(now))

	fresh := &Subscriber{Status: StatusAwaitingProof}
	assert.False(t, fresh.HoldsAccess(now))

	assert.True(t, (&Subscriber{Status: StatusActive, ExpiryDate: ptr(day(-1))}).HoldsAccess(now))
	assert.False(t, (&Subscriber{Status: StatusSuspended, StartDate: ptr(day(-1)), ExpiryDate: ptr(day(5))}).HoldsAccess(now))
}

func TestDueReminder(t *testing.T) {
	now := day(0)
	at := func(d time.Duration) *time.Time { return ptr(now.Add(d)) }

	assert.Equal(t, 7, (&Subscriber{ExpiryDate: at(Days(5))}).DueReminder(now))
	assert.Equal(t, 3, (&Subscriber{ExpiryDate: at(Days(2))}).DueReminder(now))
	assert.Equal(t, 3, (&Subscriber{ExpiryDate: at(Days(2)), Reminder7dSent: true}).DueReminder(now))
	assert.Zero(t, (&Subscriber{ExpiryDate: at(Days(2)), Reminder3dSent: true}).DueReminder(now))
	assert.Zero(t, (&Subscriber{ExpiryDate: at(Days(5)), Reminder7dSent: true}).DueReminder(now))
	assert.Zero(t, (&Subscriber{ExpiryDate: at(-time.Hour)}).DueReminder(now))
	assert.Zero(t, (&Subscriber{}).DueReminder(now))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("manual")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodManual, m)

	for _, bad := range []string{"", "MANUAL", "crypto", "card;drop"} {
		_, err := ParsePaymentMethod(bad)
		assert.True(t, errors.Is(err, ErrInvalidInput), bad)
	}
}

func TestCloneIsDeep(t *testing.T) {
	sub := &Subscriber{ExpiryDate: ptr(day(10))}
	c := sub.Clone()
	*c.ExpiryDate = day(99)
	assert.Equal(t, day(10), *sub.ExpiryDate)
}

func TestDaysLeft(t *testing.T) {
	sub := &Subscriber{ExpiryDate: ptr(day(10))}
	assert.Equal(t, 7, sub.DaysLeft(day(3)))
	assert.Equal(t, 0, sub.DaysLeft(day(11)))
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, NewNotFoundError("project", "x"), ErrNotFound)
	assert.ErrorIs(t, &AuthenticationError{Reason: "mismatch"}, ErrUnauthenticated)
	assert.ErrorIs(t, &ConcurrencyConflict{SubscriberID: "s", Expected: StatusActive}, ErrStaleTransition)
	assert.ErrorIs(t, &TransitionError{Operation: "extend", From: StatusExpired}, ErrInvalidTransition)

	cause := errors.New("timeout")
	ext := NewExternalDependencyError("s3", "put", cause)
	assert.ErrorIs(t, ext, ErrExternalServiceUnavailable)
	assert.ErrorIs(t, ext, cause)
}
