package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriberEvent событие о зафиксированном переходе, публикуется в Kafka
type SubscriberEvent struct {
	EventID      uuid.UUID  `json:"event_id"`
	SubscriberID uuid.UUID  `json:"subscriber_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	Operation    string     `json:"operation"`
	From         Status     `json:"from"`
	To           Status     `json:"to"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// NewSubscriberEvent собирает событие по состоянию после перехода
func NewSubscriberEvent(op string, from Status, after *Subscriber, at time.Time) SubscriberEvent {
	return SubscriberEvent{
		EventID:      uuid.New(),
		SubscriberID: after.ID,
		ProjectID:    after.ProjectID,
		Operation:    op,
		From:         from,
		To:           after.Status,
		ExpiryDate:   copyTime(after.ExpiryDate),
		OccurredAt:   at,
	}
}
