package checkout

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// SignatureHeader заголовок подписи вебхука Stripe
const SignatureHeader = "Stripe-Signature"

const eventCheckoutCompleted = "checkout.session.completed"

// ErrIgnoredEvent событие не влияет на подписчиков
var ErrIgnoredEvent = errors.New("ignored stripe event")

// CompletedCheckout оплаченная сессия
type CompletedCheckout struct {
	EventID      string
	SessionID    string
	ProjectID    uuid.UUID
	PlanID       uuid.UUID
	SubscriberID uuid.UUID
}

// ProofReference ссылка-подтверждение, сохраняемая в payment_proof_url
func (c CompletedCheckout) ProofReference() string {
	return "stripe-checkout:" + c.SessionID
}

// ParseCompletedEvent проверяет подпись и извлекает checkout.session.completed с payment_status=paid.
// Для прочих событий возвращает ErrIgnoredEvent.
func ParseCompletedEvent(payload []byte, signature, secret string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: fmt.Sprintf("stripe signature: %v", err)}
	}

	if event.Type != eventCheckoutCompleted {
		return nil, ErrIgnoredEvent
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, domain.NewValidationError("data", "malformed checkout session")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrIgnoredEvent
	}

	out := &CompletedCheckout{EventID: event.ID, SessionID: sess.ID}
	ids := []struct {
		key string
		dst *uuid.UUID
	}{
		{metadataProjectID, &out.ProjectID},
		{metadataPlanID, &out.PlanID},
		{metadataSubscriberID, &out.SubscriberID},
	}
	for _, id := range ids {
		parsed, err := uuid.Parse(sess.Metadata[id.key])
		if err != nil {
			return nil, domain.NewValidationError(id.key, "missing or malformed session metadata")
		}
		*id.dst = parsed
	}
	return out, nil
}
