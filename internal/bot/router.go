// Package bot диалог с подписчиком: команды, кнопки и скриншоты оплаты.
// Шаг диалога определяется только статусом подписчика в БД.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/service"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
)

// Router обрабатывает одно обновление Telegram в контексте проекта
type Router interface {
	Handle(ctx context.Context, project *domain.Project, upd telegram.Update) error
}

type router struct {
	subscribers service.SubscriberService
	intake      service.PaymentIntake
	plans       repository.PlanRepository
	bots        telegram.Provider
	log         *logger.Logger
	now         func() time.Time
}

// NewRouter создает маршрутизатор диалога
func NewRouter(
	subscribers service.SubscriberService,
	intake service.PaymentIntake,
	plans repository.PlanRepository,
	bots telegram.Provider,
	log *logger.Logger,
) Router {
	return &router{
		subscribers: subscribers,
		intake:      intake,
		plans:       plans,
		bots:        bots,
		log:         log,
		now:         time.Now,
	}
}

// conversation состояние обработки одного обновления
type conversation struct {
	project *domain.Project
	bot     telegram.Bot
	sub     *domain.Subscriber
	upd     telegram.Update
}

// Handle возвращает ошибку только для сбоев, при которых повторная доставка имеет смысл
func (r *router) Handle(ctx context.Context, project *domain.Project, upd telegram.Update) error {
	bot, err := r.bots.Bot(ctx, project.BotToken)
	if err != nil {
		return err
	}
	sub, err := r.subscribers.Enroll(ctx, project.ID, upd.UserID, upd.ChatID, upd.Username)
	if err != nil {
		return err
	}
	c := &conversation{project: project, bot: bot, sub: sub, upd: upd}

	switch {
	case upd.IsCallback():
		err = r.handleCallback(ctx, c)
	case upd.IsPhoto():
		err = r.handlePhoto(ctx, c)
	default:
		err = r.handleText(ctx, c)
	}

	// параллельная обработка уже изменила запись, второй победитель не нужен
	if errors.Is(err, domain.ErrStaleTransition) {
		r.log.Infow("Concurrent update lost the race", "subscriberID", sub.ID, "updateID", upd.UpdateID)
		return nil
	}
	return err
}

func (r *router) handleText(ctx context.Context, c *conversation) error {
	cmd, ok := ParseCommand(c.upd.Text)
	if !ok {
		// свободный текст игнорируется
		return nil
	}

	switch cmd {
	case CommandStart:
		return r.start(ctx, c)
	case CommandPlans:
		return r.showPlans(ctx, c, "")
	case CommandStatus:
		return r.showStatus(ctx, c)
	case CommandRenew, CommandExtend:
		return r.renew(ctx, c, cmd)
	case CommandHelp:
		r.reply(ctx, c, helpText, nil)
		return nil
	}
	r.reply(ctx, c, unknownCommandText, nil)
	return nil
}

func (r *router) start(ctx context.Context, c *conversation) error {
	switch c.sub.Status {
	case domain.StatusActive, domain.StatusPendingApproval, domain.StatusSuspended, domain.StatusAwaitingProof:
		r.reply(ctx, c, welcomeText(c.project, c.sub.Username), nil)
		return r.showStatus(ctx, c)
	}
	return r.showPlans(ctx, c, welcomeText(c.project, c.sub.Username)+"\n\n")
}

func (r *router) showPlans(ctx context.Context, c *conversation, prefix string) error {
	plans, err := r.plans.ListActiveByProject(ctx, c.project.ID)
	if err != nil {
		return err
	}
	r.reply(ctx, c, prefix+plansText(plans), plansKeyboard(plans))
	return nil
}

func (r *router) showStatus(ctx context.Context, c *conversation) error {
	r.reply(ctx, c, statusText(c.sub, r.now()), statusKeyboard(c.sub))
	return nil
}

// renew продление доступно только из active, иначе это обычный выбор тарифа
func (r *router) renew(ctx context.Context, c *conversation, cmd string) error {
	switch c.sub.Status {
	case domain.StatusPendingApproval:
		r.reply(ctx, c, proofUnderReviewText, nil)
		return nil
	case domain.StatusSuspended:
		return r.showStatus(ctx, c)
	}
	return r.showPlans(ctx, c, renewText(c.sub, cmd, r.now())+"\n\n")
}

func (r *router) handleCallback(ctx context.Context, c *conversation) error {
	cb, err := ParseCallback(c.upd.CallbackData)
	if err != nil {
		r.log.Debugw("Malformed callback", "subscriberID", c.sub.ID, "data", c.upd.CallbackData)
		r.answer(ctx, c, softFailText)
		return nil
	}
	r.answer(ctx, c, "")

	switch cb.Action {
	case ActionStatus:
		return r.showStatus(ctx, c)
	case ActionRenew:
		return r.renew(ctx, c, CommandRenew)
	case ActionPlan:
		return r.selectPlan(ctx, c, cb)
	case ActionPay:
		return r.selectMethod(ctx, c, cb)
	}
	return nil
}

// planFor тариф из кнопки должен принадлежать проекту и быть активным
func (r *router) planFor(ctx context.Context, c *conversation, cb Callback) (*domain.Plan, error) {
	plan, err := r.plans.GetByID(ctx, cb.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if plan.ProjectID != c.project.ID || !plan.Active {
		return nil, nil
	}
	return plan, nil
}

func (r *router) selectPlan(ctx context.Context, c *conversation, cb Callback) error {
	plan, err := r.planFor(ctx, c, cb)
	if err != nil {
		return err
	}
	if plan == nil {
		r.reply(ctx, c, planUnavailableText, nil)
		return nil
	}

	sub, _, err := r.subscribers.SelectPlan(ctx, c.sub, plan)
	if err != nil {
		return r.userError(ctx, c, err)
	}
	c.sub = sub

	kb := methodsKeyboard(c.project, plan)
	if kb == nil {
		r.reply(ctx, c, methodDisabledText, nil)
		return nil
	}
	// повторное нажатие той же кнопки просто заново показывает способы оплаты
	r.reply(ctx, c, methodsText(plan), kb)
	return nil
}

func (r *router) selectMethod(ctx context.Context, c *conversation, cb Callback) error {
	plan, err := r.planFor(ctx, c, cb)
	if err != nil {
		return err
	}
	if plan == nil {
		r.reply(ctx, c, planUnavailableText, nil)
		return nil
	}

	out, err := r.intake.SelectMethod(ctx, c.project, c.sub, plan, cb.Method)
	if err != nil {
		return r.userError(ctx, c, err)
	}
	c.sub = out.Subscriber

	switch cb.Method {
	case domain.PaymentMethodManual:
		r.reply(ctx, c, manualText(c.project, plan), nil)
	case domain.PaymentMethodCard:
		r.reply(ctx, c, checkoutText(plan), checkoutKeyboard(out.CheckoutURL))
	}
	return nil
}

func (r *router) handlePhoto(ctx context.Context, c *conversation) error {
	switch c.sub.Status {
	case domain.StatusAwaitingProof:
	case domain.StatusPendingApproval:
		r.reply(ctx, c, proofUnderReviewText, nil)
		return nil
	default:
		r.reply(ctx, c, photoNotExpectedText, nil)
		return nil
	}

	if _, err := r.intake.SubmitProof(ctx, c.project, c.sub, c.upd.PhotoFileID); err != nil {
		return r.userError(ctx, c, err)
	}
	r.reply(ctx, c, proofReceivedText, nil)
	return nil
}

// userError ошибки, о которых достаточно сообщить пользователю.
// Сбои хранилища возвращаются наверх, чтобы Telegram повторил доставку.
func (r *router) userError(ctx context.Context, c *conversation, err error) error {
	switch {
	case errors.Is(err, domain.ErrStaleTransition):
		return err
	case errors.Is(err, domain.ErrInvalidTransition):
		if c.sub.Status == domain.StatusPendingApproval {
			r.reply(ctx, c, proofUnderReviewText, nil)
			return nil
		}
		return r.showStatus(ctx, c)
	case errors.Is(err, domain.ErrInvalidInput):
		r.reply(ctx, c, methodDisabledText, nil)
		return nil
	case errors.Is(err, domain.ErrExternalServiceUnavailable):
		r.log.Warnw("Payment provider call failed", "subscriberID", c.sub.ID, "error", err)
		r.reply(ctx, c, checkoutFailedText, nil)
		return nil
	}
	r.log.Errorw("Failed to handle update", "subscriberID", c.sub.ID, "updateID", c.upd.UpdateID, "error", err)
	r.reply(ctx, c, genericFailureText, nil)
	return err
}

// reply сбой отправки не откатывает уже записанный переход
func (r *router) reply(ctx context.Context, c *conversation, text string, buttons [][]telegram.Button) {
	err := c.bot.SendMessage(context.WithoutCancel(ctx), telegram.OutgoingMessage{
		ChatID:  c.sub.ChatID,
		Text:    text,
		Buttons: buttons,
	})
	if err != nil {
		r.log.Warnw("Failed to send reply", "subscriberID", c.sub.ID, "chatID", c.sub.ChatID, "error", err)
	}
}

func (r *router) answer(ctx context.Context, c *conversation, text string) {
	if c.upd.CallbackID == "" {
		return
	}
	if err := c.bot.AnswerCallback(context.WithoutCancel(ctx), c.upd.CallbackID, text); err != nil {
		r.log.Debugw("Failed to answer callback", "subscriberID", c.sub.ID, "error", err)
	}
}
