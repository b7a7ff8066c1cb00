package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status состояние подписчика. Это единственный "регистр шага" диалога.
type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusAwaitingProof   Status = "awaiting_proof"
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
	StatusExpired         Status = "expired"
	StatusRejected        Status = "rejected"
	StatusSuspended       Status = "suspended"
)

// AllStatuses в порядке жизненного цикла
var AllStatuses = []Status{
	StatusPendingPayment,
	StatusAwaitingProof,
	StatusPendingApproval,
	StatusActive,
	StatusExpired,
	StatusRejected,
	StatusSuspended,
}

// Valid проверяет, что статус входит в перечисление
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// transitions допустимые переходы from -> to.
// Переход в тот же статус означает изменение полей без смены шага (выбор плана, продление).
// Переходы в suspended и в тот же статус вне active допустимы только при живом гранте (продление), это проверяет сервис.
var transitions = map[Status][]Status{
	StatusPendingPayment:  {StatusPendingPayment, StatusAwaitingProof, StatusActive, StatusSuspended, StatusExpired},
	StatusAwaitingProof:   {StatusAwaitingProof, StatusPendingPayment, StatusPendingApproval, StatusActive, StatusSuspended, StatusExpired},
	StatusPendingApproval: {StatusPendingApproval, StatusActive, StatusRejected, StatusSuspended, StatusExpired},
	StatusActive:          {StatusActive, StatusPendingPayment, StatusSuspended, StatusExpired},
	StatusSuspended:       {StatusActive, StatusExpired},
	StatusExpired:         {StatusPendingPayment, StatusActive},
	StatusRejected:        {StatusRejected, StatusPendingPayment, StatusSuspended, StatusExpired},
}

// CanTransition сообщает, разрешён ли переход
func CanTransition(from, to Status) bool {
	for _, st := range transitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

// PaymentMethod способ оплаты из закрытого списка
type PaymentMethod string

const (
	PaymentMethodManual PaymentMethod = "manual"
	PaymentMethodCard   PaymentMethod = "card"
)

// ParsePaymentMethod принимает только значения из allow-list
func ParsePaymentMethod(token string) (PaymentMethod, error) {
	switch PaymentMethod(token) {
	case PaymentMethodManual, PaymentMethodCard:
		return PaymentMethod(token), nil
	default:
		return "", NewValidationError("method", "unsupported payment method")
	}
}

// Subscriber запись о доступе одного пользователя Telegram к каналу проекта
type Subscriber struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	ProjectID        uuid.UUID     `json:"project_id" db:"project_id"`
	TelegramUserID   int64         `json:"telegram_user_id" db:"telegram_user_id"`
	ChatID           int64         `json:"chat_id" db:"chat_id"`
	Username         string        `json:"username" db:"username"`
	Status           Status        `json:"status" db:"status"`
	PlanID           *uuid.UUID    `json:"plan_id,omitempty" db:"plan_id"`
	PaymentMethod    PaymentMethod `json:"payment_method,omitempty" db:"payment_method"`
	PaymentProofURL  string        `json:"payment_proof_url,omitempty" db:"payment_proof_url"`
	CheckoutURL      string        `json:"checkout_url,omitempty" db:"checkout_url"`
	StartDate        *time.Time    `json:"start_date,omitempty" db:"start_date"`
	ExpiryDate       *time.Time    `json:"expiry_date,omitempty" db:"expiry_date"`
	InviteLink       string        `json:"invite_link,omitempty" db:"invite_link"`
	SuspendedAt      *time.Time    `json:"suspended_at,omitempty" db:"suspended_at"`
	RejectionReason  string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	SuspensionReason string        `json:"suspension_reason,omitempty" db:"suspension_reason"`
	Reminder7dSent   bool          `json:"reminder_7d_sent" db:"reminder_7d_sent"`
	Reminder3dSent   bool          `json:"reminder_3d_sent" db:"reminder_3d_sent"`
	Version          int64         `json:"version" db:"version"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// Clone глубокая копия (указатели на время и план копируются)
func (s *Subscriber) Clone() *Subscriber {
	if s == nil {
		return nil
	}
	c := *s
	if s.PlanID != nil {
		id := *s.PlanID
		c.PlanID = &id
	}
	c.StartDate = copyTime(s.StartDate)
	c.ExpiryDate = copyTime(s.ExpiryDate)
	c.SuspendedAt = copyTime(s.SuspendedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// HasLiveGrant true, если у подписчика есть неистёкший оплаченный период.
// Это текущий active, а также продление, начатое из active.
func (s *Subscriber) HasLiveGrant(now time.Time) bool {
	if s.ExpiryDate == nil || !s.ExpiryDate.After(now) {
		return false
	}
	switch s.Status {
	case StatusExpired, StatusSuspended:
		return false
	}
	return s.StartDate != nil
}

// HoldsAccess подписчик сейчас в канале: active (даже если sweeper ещё не дошёл) или живой грант при продлении
func (s *Subscriber) HoldsAccess(now time.Time) bool {
	return s.Status == StatusActive || s.HasLiveGrant(now)
}

// ClearGrant сбрасывает период доступа и флаги напоминаний
func (s *Subscriber) ClearGrant() {
	s.StartDate = nil
	s.ExpiryDate = nil
	s.InviteLink = ""
	s.Reminder7dSent = false
	s.Reminder3dSent = false
}

// ReminderWindows окна напоминаний в днях, от дальнего к ближнему
var ReminderWindows = []int{7, 3}

// DueReminder самое близкое окно, в которое попал срок и напоминание ещё не отправлено.
// 0, если отправлять нечего.
func (s *Subscriber) DueReminder(now time.Time) int {
	if s.ExpiryDate == nil || !s.ExpiryDate.After(now) {
		return 0
	}
	left := s.ExpiryDate.Sub(now)
	for i := len(ReminderWindows) - 1; i >= 0; i-- {
		days := ReminderWindows[i]
		if left > Days(days) {
			continue
		}
		if s.ReminderSent(days) {
			return 0
		}
		return days
	}
	return 0
}

// ReminderSent отправлено ли напоминание для окна
func (s *Subscriber) ReminderSent(days int) bool {
	if days == 3 {
		return s.Reminder3dSent
	}
	return s.Reminder7dSent
}

// ApprovalExpiry вычисляет (start, expiry) при одобрении.
// Продление: expiry + duration, start сохраняется. Иначе now + duration.
func ApprovalExpiry(s *Subscriber, durationDays int, now time.Time) (start, expiry time.Time) {
	d := Days(durationDays)
	if s.HasLiveGrant(now) {
		start = now
		if s.StartDate != nil {
			start = *s.StartDate
		}
		return start, s.ExpiryDate.Add(d)
	}
	return now, now.Add(d)
}

// ExtendExpiry max(current, now) + days, никогда не уменьшает срок
func ExtendExpiry(current *time.Time, days int, now time.Time) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(Days(days))
}

// Days переводит дни в time.Duration
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// DaysLeft сколько полных дней осталось до истечения (0, если истёк или не задан)
func (s *Subscriber) DaysLeft(now time.Time) int {
	if s.ExpiryDate == nil || !s.ExpiryDate.After(now) {
		return 0
	}
	return int(s.ExpiryDate.Sub(now) / (24 * time.Hour))
}
