package bot

import (
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
)

func plansKeyboard(plans []domain.Plan) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []telegram.Button{{
			Text:         p.Name + " · " + p.PriceLabel(),
			CallbackData: PlanCallback(p.ID),
		}})
	}
	return rows
}

// methodsKeyboard только включённые у проекта способы оплаты
func methodsKeyboard(project *domain.Project, plan *domain.Plan) [][]telegram.Button {
	var row []telegram.Button
	if project.ManualEnabled {
		row = append(row, telegram.Button{Text: "🧾 Bank transfer", CallbackData: PayCallback(plan.ID, domain.PaymentMethodManual)})
	}
	if project.CardEnabled {
		row = append(row, telegram.Button{Text: "💳 Card", CallbackData: PayCallback(plan.ID, domain.PaymentMethodCard)})
	}
	if len(row) == 0 {
		return nil
	}
	return [][]telegram.Button{row}
}

func checkoutKeyboard(url string) [][]telegram.Button {
	return [][]telegram.Button{{{Text: "💳 Pay now", URL: url}}}
}

func statusKeyboard(sub *domain.Subscriber) [][]telegram.Button {
	switch sub.Status {
	case domain.StatusActive:
		return [][]telegram.Button{{{Text: "🔄 Renew", CallbackData: ActionRenew}}}
	case domain.StatusPendingPayment:
		if sub.PaymentMethod == domain.PaymentMethodCard && sub.CheckoutURL != "" {
			return checkoutKeyboard(sub.CheckoutURL)
		}
	}
	return nil
}
