package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project настройки тенанта: канал, бот и способы оплаты
type Project struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	BotToken           string    `json:"-" db:"bot_token"`
	ChannelID          int64     `json:"channel_id" db:"channel_id"`
	AdminChatID        int64     `json:"admin_chat_id,omitempty" db:"admin_chat_id"`
	ManualEnabled      bool      `json:"manual_enabled" db:"manual_enabled"`
	ManualInstructions string    `json:"manual_instructions" db:"manual_instructions"`
	CardEnabled        bool      `json:"card_enabled" db:"card_enabled"`
	Currency           string    `json:"currency" db:"currency"`
	SupportContact     string    `json:"support_contact" db:"support_contact"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// MethodEnabled включён ли способ оплаты у проекта
func (p *Project) MethodEnabled(m PaymentMethod) bool {
	switch m {
	case PaymentMethodManual:
		return p.ManualEnabled
	case PaymentMethodCard:
		return p.CardEnabled
	}
	return false
}

// Plan тариф проекта
type Plan struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ProjectID    uuid.UUID `json:"project_id" db:"project_id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	PriceMinor   int64     `json:"price_minor" db:"price_minor"`
	Currency     string    `json:"currency" db:"currency"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	Active       bool      `json:"active" db:"active"`
}

// PriceLabel цена в человекочитаемом виде, например "9.99 USD"
func (p *Plan) PriceLabel() string {
	return fmt.Sprintf("%d.%02d %s", p.PriceMinor/100, p.PriceMinor%100, p.Currency)
}
