package domain

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Action вид уведомления о смене состояния. Закрытое перечисление.
type Action string

const (
	ActionApproved    Action = "approved"
	ActionRejected    Action = "rejected"
	ActionSuspended   Action = "suspended"
	ActionKicked      Action = "kicked"
	ActionReactivated Action = "reactivated"
	ActionExtended    Action = "extended"
	ActionReminder    Action = "reminder"
)

// Notification одно исходящее сообщение о смене состояния подписчика
type Notification struct {
	Action     Action
	Reason     string
	Expiry     time.Time
	Days       int
	InviteLink string
	Support    string
}

const dateLayout = "02 Jan 2006"

// Render возвращает HTML-текст сообщения для Telegram.
// Все поля, пришедшие от людей, экранируются.
func (n Notification) Render() (string, error) {
	var b strings.Builder
	switch n.Action {
	case ActionApproved:
		b.WriteString("✅ <b>Your payment has been approved!</b>\n")
		fmt.Fprintf(&b, "Access is valid until <b>%s</b>.\n", n.Expiry.UTC().Format(dateLayout))
		if n.InviteLink != "" {
			fmt.Fprintf(&b, "Join the channel: %s\n", html.EscapeString(n.InviteLink))
			b.WriteString("The link works once.")
		} else {
			b.WriteString("We could not create your invite link. Please contact support.")
		}
	case ActionRejected:
		b.WriteString("❌ <b>Your payment was not approved.</b>\n")
		writeReason(&b, n.Reason)
		b.WriteString("Send /plans to try again.")
	case ActionSuspended:
		b.WriteString("⏸ <b>Your access has been suspended.</b>\n")
		writeReason(&b, n.Reason)
	case ActionKicked:
		b.WriteString("⌛ <b>Your access has ended.</b>\n")
		b.WriteString("Send /plans to subscribe again.")
	case ActionReactivated:
		b.WriteString("▶️ <b>Your access has been restored.</b>\n")
		if !n.Expiry.IsZero() {
			fmt.Fprintf(&b, "Valid until <b>%s</b>.\n", n.Expiry.UTC().Format(dateLayout))
		}
		if n.InviteLink != "" {
			fmt.Fprintf(&b, "Rejoin the channel: %s", html.EscapeString(n.InviteLink))
		}
	case ActionExtended:
		fmt.Fprintf(&b, "🎁 <b>Your access was extended by %d day(s).</b>\n", n.Days)
		fmt.Fprintf(&b, "New expiry date: <b>%s</b>.", n.Expiry.UTC().Format(dateLayout))
	case ActionReminder:
		fmt.Fprintf(&b, "⏰ Your access expires in <b>%d day(s)</b> (%s).\n", n.Days, n.Expiry.UTC().Format(dateLayout))
		b.WriteString("Send /renew to keep your access.")
	default:
		return "", NewValidationError("action", fmt.Sprintf("unknown notification action %q", n.Action))
	}
	if n.Support != "" {
		fmt.Fprintf(&b, "\n\nSupport: %s", html.EscapeString(n.Support))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeReason(b *strings.Builder, reason string) {
	if reason == "" {
		return
	}
	fmt.Fprintf(b, "Reason: %s\n", html.EscapeString(reason))
}
