package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/microcosm-cc/bluemonday"
)

const dateLayout = "02 Jan 2006"

// instructionPolicy подмножество HTML, которое понимает Telegram
var instructionPolicy = newInstructionPolicy()

func newInstructionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "tg")
	p.RequireParseableURLs(true)
	return p
}

// SanitizeInstructions очищает текст инструкций, написанный владельцем проекта
func SanitizeInstructions(s string) string {
	return strings.TrimSpace(instructionPolicy.Sanitize(s))
}

func esc(s string) string { return html.EscapeString(s) }

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func welcomeText(project *domain.Project, username string) string {
	name := username
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hi, %s!\nThis bot manages access to <b>%s</b>.\nChoose a plan below to get started.",
		esc(name), esc(project.Name))
}

func plansText(plans []domain.Plan) string {
	if len(plans) == 0 {
		return "There are no plans available right now. Please check back later."
	}
	var b strings.Builder
	b.WriteString("💳 <b>Available plans</b>\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n• <b>%s</b>: %s for %d day(s)", esc(p.Name), esc(p.PriceLabel()), p.DurationDays)
		if p.Description != "" {
			fmt.Fprintf(&b, "\n  %s", esc(p.Description))
		}
	}
	return b.String()
}

func methodsText(plan *domain.Plan) string {
	return fmt.Sprintf("You selected <b>%s</b> (%s, %d day(s)).\nHow would you like to pay?",
		esc(plan.Name), esc(plan.PriceLabel()), plan.DurationDays)
}

func manualText(project *domain.Project, plan *domain.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 <b>Manual payment for %s</b>\n", esc(plan.Name))
	fmt.Fprintf(&b, "Amount: <b>%s</b>\n\n", esc(plan.PriceLabel()))
	if instructions := SanitizeInstructions(project.ManualInstructions); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("When you have paid, send a photo of the receipt here.")
	return b.String()
}

func checkoutText(plan *domain.Plan) string {
	return fmt.Sprintf("💳 Pay <b>%s</b> for <b>%s</b> by card using the button below.\nAccess is granted automatically after payment.",
		esc(plan.PriceLabel()), esc(plan.Name))
}

// statusText при продлении сначала показывает текущий оплаченный период, затем шаг оплаты
func statusText(sub *domain.Subscriber, now time.Time) string {
	step := stepText(sub, now)
	if sub.Status != domain.StatusActive && sub.HasLiveGrant(now) {
		return fmt.Sprintf("✅ Your access is active until <b>%s</b> (%d day(s) left).\n\n",
			formatDate(*sub.ExpiryDate), sub.DaysLeft(now)) + step
	}
	return step
}

func stepText(sub *domain.Subscriber, now time.Time) string {
	switch sub.Status {
	case domain.StatusActive:
		if sub.ExpiryDate == nil {
			return "✅ Your access is active."
		}
		return fmt.Sprintf("✅ Your access is active until <b>%s</b> (%d day(s) left).\nSend /renew to extend it.",
			formatDate(*sub.ExpiryDate), sub.DaysLeft(now))
	case domain.StatusPendingPayment:
		if sub.PaymentMethod == domain.PaymentMethodCard && sub.CheckoutURL != "" {
			return "⏳ Your card payment has not been completed yet. Use the payment button or send /plans to start over."
		}
		return "⏳ You have not paid yet. Send /plans to choose a plan."
	case domain.StatusAwaitingProof:
		return "📷 Waiting for your payment receipt. Send a photo of it here, or /plans to choose another plan."
	case domain.StatusPendingApproval:
		return "🔎 Your payment proof is being reviewed. You will get a message once it is approved."
	case domain.StatusRejected:
		text := "❌ Your last payment was not approved."
		if sub.RejectionReason != "" {
			text += "\nReason: " + esc(sub.RejectionReason)
		}
		return text + "\nSend /plans to try again."
	case domain.StatusSuspended:
		return "⏸ Your access is suspended. Please contact support."
	case domain.StatusExpired:
		return "⌛ Your access has expired. Send /plans to subscribe again."
	}
	return "Send /start to begin."
}

func renewText(sub *domain.Subscriber, command string, now time.Time) string {
	if !sub.HoldsAccess(now) {
		return "You do not have active access right now. Choose a plan to subscribe:"
	}
	if command == CommandExtend {
		return fmt.Sprintf("To extend your access (now until <b>%s</b>), choose a plan. The new period is added to your current one.",
			formatDate(*expiryOr(sub, now)))
	}
	return fmt.Sprintf("🔄 Renew your access. It is active until <b>%s</b>; the new period will be added on top.",
		formatDate(*expiryOr(sub, now)))
}

func expiryOr(sub *domain.Subscriber, now time.Time) *time.Time {
	if sub.ExpiryDate != nil {
		return sub.ExpiryDate
	}
	return &now
}

const helpText = "Available commands:\n" +
	"/start – start over\n" +
	"/plans – list plans\n" +
	"/status – show your access status\n" +
	"/renew – renew your access\n" +
	"/extend – extend your access\n" +
	"/help – this message"

const (
	unknownCommandText   = "Unknown command. Send /help to see what I can do."
	softFailText         = "This button is no longer valid. Send /plans to start again."
	planUnavailableText  = "This plan is not available anymore. Send /plans to see current plans."
	methodDisabledText   = "This payment method is not available. Please choose another one."
	checkoutFailedText   = "We could not start the card payment. Please try again in a minute or pay manually."
	photoNotExpectedText = "I was not expecting a photo. To pay manually, choose a plan with /plans and select manual payment first."
	proofUnderReviewText = "Your payment proof is already being reviewed. You will get a message once it is approved."
	proofReceivedText    = "🙏 Thanks! Your receipt was received and is waiting for review."
	genericFailureText   = "Something went wrong. Please try /start again."
)
