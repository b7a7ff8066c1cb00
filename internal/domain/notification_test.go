package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCoversEveryAction(t *testing.T) {
	actions := []Action{
		ActionApproved, ActionRejected, ActionSuspended, ActionKicked,
		ActionReactivated, ActionExtended, ActionReminder,
	}
	for _, a := range actions {
		text, err := Notification{Action: a, Expiry: day(40), Days: 5}.Render()
		require.NoError(t, err, a)
		assert.NotEmpty(t, text, a)
	}
}

func TestRenderEscapesReason(t *testing.T) {
	text, err := Notification{Action: ActionRejected, Reason: `<script>alert("x")</script>`}.Render()
	require.NoError(t, err)
	assert.NotContains(t, text, "<script>")
	assert.Contains(t, text, "&lt;script&gt;")
}

func TestRenderApprovedIncludesInviteAndExpiry(t *testing.T) {
	text, err := Notification{
		Action:     ActionApproved,
		Expiry:     day(40),
		InviteLink: "https://t.me/+abc",
	}.Render()
	require.NoError(t, err)
	assert.Contains(t, text, "https://t.me/+abc")
	assert.Contains(t, text, "10 Feb 2026")
}

func TestRenderUnknownAction(t *testing.T) {
	_, err := Notification{Action: "deleted"}.Render()
	assert.ErrorIs(t, err, ErrInvalidInput)
}
