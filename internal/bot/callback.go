package bot

import (
	"strings"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/google/uuid"
)

// Действия в callback_data
const (
	ActionPlan   = "plan"
	ActionPay    = "pay"
	ActionRenew  = "renew"
	ActionStatus = "status"
)

// Telegram ограничивает callback_data 64 байтами
const maxCallbackBytes = 64

// Callback разобранная кнопка: action[:plan_id[:method]]
type Callback struct {
	Action string
	PlanID uuid.UUID
	Method domain.PaymentMethod
}

// ParseCallback проверяет грамматику до любых обращений к хранилищу
func ParseCallback(data string) (Callback, error) {
	if data == "" || len(data) > maxCallbackBytes {
		return Callback{}, domain.NewValidationError("callback", "empty or oversized payload")
	}
	parts := strings.Split(data, ":")
	cb := Callback{Action: parts[0]}

	switch cb.Action {
	case ActionRenew, ActionStatus:
		if len(parts) != 1 {
			return Callback{}, domain.NewValidationError("callback", "unexpected arguments")
		}
	case ActionPlan:
		if len(parts) != 2 {
			return Callback{}, domain.NewValidationError("callback", "plan expects one argument")
		}
		id, err := parsePlanID(parts[1])
		if err != nil {
			return Callback{}, err
		}
		cb.PlanID = id
	case ActionPay:
		if len(parts) != 3 {
			return Callback{}, domain.NewValidationError("callback", "pay expects plan and method")
		}
		id, err := parsePlanID(parts[1])
		if err != nil {
			return Callback{}, err
		}
		method, err := domain.ParsePaymentMethod(parts[2])
		if err != nil {
			return Callback{}, err
		}
		cb.PlanID = id
		cb.Method = method
	default:
		return Callback{}, domain.NewValidationError("callback", "unknown action")
	}
	return cb, nil
}

func parsePlanID(s string) (uuid.UUID, error) {
	// uuid.Parse принимает и формы с фигурными скобками и urn:, здесь нужен только канонический вид
	if len(s) != 36 {
		return uuid.Nil, domain.NewValidationError("plan_id", "malformed plan id")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("plan_id", "malformed plan id")
	}
	return id, nil
}

// PlanCallback callback_data кнопки тарифа
func PlanCallback(planID uuid.UUID) string {
	return ActionPlan + ":" + planID.String()
}

// PayCallback callback_data кнопки способа оплаты
func PayCallback(planID uuid.UUID, method domain.PaymentMethod) string {
	return ActionPay + ":" + planID.String() + ":" + string(method)
}
