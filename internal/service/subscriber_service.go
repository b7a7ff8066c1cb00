package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/kafka"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/Dhoini/channel-access-bot/internal/telegram"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
)

const (
	maxExtendDays  = 3650
	maxReasonRunes = 500
)

// Result итог административной операции.
// Warnings содержит сбои побочных эффектов; сам переход уже зафиксирован.
type Result struct {
	Subscriber *domain.Subscriber `json:"subscriber"`
	Warnings   []string           `json:"warnings"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// SubscriberService машина состояний подписчика.
// Каждый переход это CAS по (status, version); побочные эффекты выполняются только после успешной записи.
type SubscriberService interface {
	Enroll(ctx context.Context, projectID uuid.UUID, telegramUserID, chatID int64, username string) (*domain.Subscriber, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error)

	// SelectPlan выбор тарифа, возвращает changed=false, если тариф уже выбран
	SelectPlan(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan) (*domain.Subscriber, bool, error)
	// ChooseManual pending_payment -> awaiting_proof
	ChooseManual(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan) (*domain.Subscriber, bool, error)
	// AttachCheckout запоминает ссылку на оплату картой, статус остаётся pending_payment
	AttachCheckout(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan, checkoutURL string) (*domain.Subscriber, error)
	// SubmitProof awaiting_proof -> pending_approval
	SubmitProof(ctx context.Context, sub *domain.Subscriber, proofRef string) (*domain.Subscriber, error)

	Approve(ctx context.Context, id uuid.UUID, opts ApproveOptions) (*Result, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*Result, error)
	Suspend(ctx context.Context, id uuid.UUID, reason string) (*Result, error)
	Reactivate(ctx context.Context, id uuid.UUID) (*Result, error)
	Extend(ctx context.Context, id uuid.UUID, days int) (*Result, error)
	Revoke(ctx context.Context, id uuid.UUID) (*Result, error)

	// Expire пассивное истечение срока (sweeper)
	Expire(ctx context.Context, sub *domain.Subscriber) (*Result, error)
	// SendReminder напоминание за days дней; флаг ставится один раз
	SendReminder(ctx context.Context, sub *domain.Subscriber, days int) (*Result, error)
}

// ApproveOptions необязательные параметры одобрения
type ApproveOptions struct {
	// ProofRef подтверждение оплаты (например, stripe-checkout:<session>)
	ProofRef string
	// PlanID оплаченный тариф, если он известен точно (метаданные Stripe)
	PlanID *uuid.UUID
	// ExpectedVersion версия записи, которую видел администратор; 0 не проверяется
	ExpectedVersion int64
}

// Dependencies зависимости сервиса подписчиков
type Dependencies struct {
	Projects    repository.ProjectRepository
	Plans       repository.PlanRepository
	Subscribers repository.SubscriberRepository
	Bots        telegram.Provider
	Notifier    Notifier
	Publisher   kafka.Publisher
	Metrics     metrics.BotMetrics
	Log         *logger.Logger
	// Now часы; по умолчанию time.Now
	Now func() time.Time
}

type subscriberService struct {
	projects    repository.ProjectRepository
	plans       repository.PlanRepository
	subscribers repository.SubscriberRepository
	bots        telegram.Provider
	notifier    Notifier
	publisher   kafka.Publisher
	metrics     metrics.BotMetrics
	log         *logger.Logger
	now         func() time.Time
}

// NewSubscriberService создает сервис подписчиков
func NewSubscriberService(deps Dependencies) SubscriberService {
	s := &subscriberService{
		projects:    deps.Projects,
		plans:       deps.Plans,
		subscribers: deps.Subscribers,
		bots:        deps.Bots,
		notifier:    deps.Notifier,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		log:         deps.Log,
		now:         deps.Now,
	}
	if s.publisher == nil {
		s.publisher = kafka.NoopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *subscriberService) Enroll(ctx context.Context, projectID uuid.UUID, telegramUserID, chatID int64, username string) (*domain.Subscriber, error) {
	sub, err := s.subscribers.Upsert(ctx, projectID, telegramUserID, chatID, username)
	if err != nil {
		s.log.Errorw("Failed to upsert subscriber", "projectID", projectID, "telegramUserID", telegramUserID, "error", err)
		return nil, fmt.Errorf("enroll subscriber: %w", err)
	}
	return sub, nil
}

func (s *subscriberService) Get(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	sub, err := s.subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "subscriber", id.String())
	}
	return sub, nil
}

func (s *subscriberService) SelectPlan(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan) (*domain.Subscriber, bool, error) {
	if sub.Status == domain.StatusPendingPayment && samePlan(sub, plan) {
		return sub, false, nil
	}
	// вернувшийся после истечения начинает без старого периода, иначе sweeper примет его за просроченного
	restart := sub.Status == domain.StatusExpired
	saved, err := s.transition(ctx, "select_plan", sub, domain.StatusPendingPayment, func(next *domain.Subscriber) {
		if restart {
			next.ClearGrant()
		}
		next.PlanID = &plan.ID
		next.PaymentMethod = ""
		next.CheckoutURL = ""
		next.RejectionReason = ""
	})
	if err != nil {
		return nil, false, err
	}
	return saved, true, nil
}

func (s *subscriberService) ChooseManual(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan) (*domain.Subscriber, bool, error) {
	if sub.Status == domain.StatusAwaitingProof && samePlan(sub, plan) {
		return sub, false, nil
	}
	saved, err := s.transition(ctx, "choose_manual", sub, domain.StatusAwaitingProof, func(next *domain.Subscriber) {
		next.PlanID = &plan.ID
		next.PaymentMethod = domain.PaymentMethodManual
		next.CheckoutURL = ""
	})
	if err != nil {
		return nil, false, err
	}
	return saved, true, nil
}

func (s *subscriberService) AttachCheckout(ctx context.Context, sub *domain.Subscriber, plan *domain.Plan, checkoutURL string) (*domain.Subscriber, error) {
	if sub.Status != domain.StatusPendingPayment {
		return nil, &domain.TransitionError{Operation: "start checkout", From: sub.Status}
	}
	return s.transition(ctx, "choose_card", sub, domain.StatusPendingPayment, func(next *domain.Subscriber) {
		next.PlanID = &plan.ID
		next.PaymentMethod = domain.PaymentMethodCard
		next.CheckoutURL = checkoutURL
	})
}

func (s *subscriberService) SubmitProof(ctx context.Context, sub *domain.Subscriber, proofRef string) (*domain.Subscriber, error) {
	if sub.Status != domain.StatusAwaitingProof {
		return nil, &domain.TransitionError{Operation: "submit proof", From: sub.Status}
	}
	return s.transition(ctx, "submit_proof", sub, domain.StatusPendingApproval, func(next *domain.Subscriber) {
		next.PaymentProofURL = proofRef
	})
}

// Approve выдаёт или продлевает доступ по выбранному тарифу и отправляет одноразовую ссылку.
// У активного подписчика одобрение без нового ProofRef (или с уже применённым) ничего не меняет:
// повторное нажатие не продлевает срок второй раз и не выпускает вторую ссылку.
func (s *subscriberService) Approve(ctx context.Context, id uuid.UUID, opts ApproveOptions) (*Result, error) {
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedVersion != 0 && sub.Version != opts.ExpectedVersion {
		return nil, &domain.ConcurrencyConflict{SubscriberID: id.String(), Expected: sub.Status}
	}
	proofRef := opts.ProofRef
	if sub.Status == domain.StatusActive && (proofRef == "" || sub.PaymentProofURL == proofRef) {
		s.log.Infow("Approval already applied", "subscriberID", id, "proof", proofRef)
		return &Result{Subscriber: sub}, nil
	}
	if !approvable(sub.Status) {
		return nil, &domain.TransitionError{Operation: "approve", From: sub.Status}
	}
	planID := sub.PlanID
	if opts.PlanID != nil {
		planID = opts.PlanID
	}
	if planID == nil {
		return nil, domain.NewValidationError("plan_id", "subscriber has not selected a plan")
	}
	plan, err := s.plans.GetByID(ctx, *planID)
	if err != nil {
		return nil, mapRepoError(err, "plan", planID.String())
	}
	if plan.ProjectID != sub.ProjectID {
		return nil, domain.NewValidationError("plan_id", "plan belongs to another project")
	}

	now := s.now()
	start, expiry := domain.ApprovalExpiry(sub, plan.DurationDays, now)
	saved, err := s.transition(ctx, "approve", sub, domain.StatusActive, func(next *domain.Subscriber) {
		next.PlanID = &plan.ID
		next.StartDate = &start
		next.ExpiryDate = &expiry
		if proofRef != "" {
			next.PaymentProofURL = proofRef
		}
		next.CheckoutURL = ""
		next.RejectionReason = ""
		next.SuspensionReason = ""
		next.SuspendedAt = nil
		next.Reminder7dSent = false
		next.Reminder3dSent = false
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	sideCtx := context.WithoutCancel(ctx)
	link := s.issueInvite(sideCtx, project, res)
	s.notify(sideCtx, project, res, domain.Notification{
		Action:     domain.ActionApproved,
		Expiry:     expiry,
		InviteLink: link,
	})
	return res, nil
}

func (s *subscriberService) Reject(ctx context.Context, id uuid.UUID, reason string) (*Result, error) {
	reason, err := cleanReason(reason)
	if err != nil {
		return nil, err
	}
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusPendingApproval {
		return nil, &domain.TransitionError{Operation: "reject", From: sub.Status}
	}

	saved, err := s.transition(ctx, "reject", sub, domain.StatusRejected, func(next *domain.Subscriber) {
		next.RejectionReason = reason
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	s.notify(context.WithoutCancel(ctx), project, res, domain.Notification{
		Action: domain.ActionRejected,
		Reason: reason,
	})
	return res, nil
}

func (s *subscriberService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*Result, error) {
	reason, err := cleanReason(reason)
	if err != nil {
		return nil, err
	}
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.HoldsAccess(s.now()) {
		return nil, &domain.TransitionError{Operation: "suspend", From: sub.Status}
	}

	now := s.now()
	saved, err := s.transition(ctx, "suspend", sub, domain.StatusSuspended, func(next *domain.Subscriber) {
		next.SuspendedAt = &now
		next.SuspensionReason = reason
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	sideCtx := context.WithoutCancel(ctx)
	s.removeMember(sideCtx, project, res)
	s.notify(sideCtx, project, res, domain.Notification{
		Action: domain.ActionSuspended,
		Reason: reason,
	})
	return res, nil
}

func (s *subscriberService) Reactivate(ctx context.Context, id uuid.UUID) (*Result, error) {
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusSuspended {
		return nil, &domain.TransitionError{Operation: "reactivate", From: sub.Status}
	}

	saved, err := s.transition(ctx, "reactivate", sub, domain.StatusActive, func(next *domain.Subscriber) {
		next.SuspendedAt = nil
		next.SuspensionReason = ""
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	sideCtx := context.WithoutCancel(ctx)
	if err := s.withBot(sideCtx, project, func(bot telegram.Bot) error {
		return bot.Unban(sideCtx, project.ChannelID, saved.TelegramUserID)
	}); err != nil {
		s.log.Warnw("Failed to unban subscriber", "subscriberID", id, "error", err)
		res.warn("unban failed: %v", err)
	}
	link := s.issueInvite(sideCtx, project, res)

	note := domain.Notification{Action: domain.ActionReactivated, InviteLink: link}
	if saved.ExpiryDate != nil {
		note.Expiry = *saved.ExpiryDate
	}
	s.notify(sideCtx, project, res, note)
	return res, nil
}

func (s *subscriberService) Extend(ctx context.Context, id uuid.UUID, days int) (*Result, error) {
	if days < 1 || days > maxExtendDays {
		return nil, domain.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", maxExtendDays))
	}
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !sub.HoldsAccess(now) {
		return nil, &domain.TransitionError{Operation: "extend", From: sub.Status}
	}

	// продление во время смены тарифа не сбивает шаг диалога
	expiry := domain.ExtendExpiry(sub.ExpiryDate, days, now)
	saved, err := s.transition(ctx, "extend", sub, sub.Status, func(next *domain.Subscriber) {
		if next.StartDate == nil {
			next.StartDate = &now
		}
		next.ExpiryDate = &expiry
		next.Reminder7dSent = false
		next.Reminder3dSent = false
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	s.notify(context.WithoutCancel(ctx), project, res, domain.Notification{
		Action: domain.ActionExtended,
		Days:   days,
		Expiry: expiry,
	})
	return res, nil
}

func (s *subscriberService) Revoke(ctx context.Context, id uuid.UUID) (*Result, error) {
	sub, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusSuspended && !sub.HoldsAccess(s.now()) {
		return nil, &domain.TransitionError{Operation: "revoke", From: sub.Status}
	}
	return s.terminate(ctx, "revoke", sub, project)
}

// Expire: active и rejected переходят в expired.
// Если срок кончился посреди продления, доступ снимается, а шаг диалога (и присланный скриншот) остаётся.
func (s *subscriberService) Expire(ctx context.Context, sub *domain.Subscriber) (*Result, error) {
	project, err := s.projects.GetByID(ctx, sub.ProjectID)
	if err != nil {
		return nil, mapRepoError(err, "project", sub.ProjectID.String())
	}
	switch sub.Status {
	case domain.StatusPendingPayment, domain.StatusAwaitingProof, domain.StatusPendingApproval:
		return s.endGrant(ctx, sub, project)
	}
	return s.terminate(ctx, "expire", sub, project)
}

func (s *subscriberService) endGrant(ctx context.Context, sub *domain.Subscriber, project *domain.Project) (*Result, error) {
	if sub.ExpiryDate == nil || sub.ExpiryDate.After(s.now()) {
		return nil, &domain.TransitionError{Operation: "expire", From: sub.Status}
	}
	saved, err := s.save(ctx, sub, func(next *domain.Subscriber) { next.ClearGrant() })
	if err != nil {
		return nil, err
	}
	s.log.Infow("Renewal grant lapsed", "subscriberID", saved.ID, "status", saved.Status)

	res := &Result{Subscriber: saved}
	sideCtx := context.WithoutCancel(ctx)
	s.removeMember(sideCtx, project, res)
	s.notify(sideCtx, project, res, domain.Notification{Action: domain.ActionKicked})
	return res, nil
}

// terminate переход в expired с исключением из канала
func (s *subscriberService) terminate(ctx context.Context, op string, sub *domain.Subscriber, project *domain.Project) (*Result, error) {
	saved, err := s.transition(ctx, op, sub, domain.StatusExpired, func(next *domain.Subscriber) {
		next.CheckoutURL = ""
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	sideCtx := context.WithoutCancel(ctx)
	s.removeMember(sideCtx, project, res)
	s.notify(sideCtx, project, res, domain.Notification{Action: domain.ActionKicked})
	return res, nil
}

func (s *subscriberService) SendReminder(ctx context.Context, sub *domain.Subscriber, days int) (*Result, error) {
	if sub.ExpiryDate == nil || !sub.HoldsAccess(s.now()) {
		return nil, &domain.TransitionError{Operation: "remind", From: sub.Status}
	}
	var already bool
	switch days {
	case 7:
		already = sub.Reminder7dSent
	case 3:
		already = sub.Reminder3dSent
	default:
		return nil, domain.NewValidationError("days", "reminders are sent 7 and 3 days before expiry")
	}
	if already {
		return &Result{Subscriber: sub}, nil
	}

	project, err := s.projects.GetByID(ctx, sub.ProjectID)
	if err != nil {
		return nil, mapRepoError(err, "project", sub.ProjectID.String())
	}

	// флаг ставим до отправки: повторный запуск не пришлёт второе напоминание
	saved, err := s.save(ctx, sub, func(next *domain.Subscriber) {
		if days == 7 {
			next.Reminder7dSent = true
		} else {
			next.Reminder3dSent = true
		}
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Subscriber: saved}
	s.notify(context.WithoutCancel(ctx), project, res, domain.Notification{
		Action: domain.ActionReminder,
		Days:   saved.DaysLeft(s.now()),
		Expiry: *saved.ExpiryDate,
	})
	return res, nil
}

// transition проверяет допустимость перехода, пишет CAS, фиксирует метрику и публикует событие
func (s *subscriberService) transition(ctx context.Context, op string, cur *domain.Subscriber, to domain.Status, mutate func(next *domain.Subscriber)) (*domain.Subscriber, error) {
	if !domain.CanTransition(cur.Status, to) {
		return nil, &domain.TransitionError{Operation: strings.ReplaceAll(op, "_", " "), From: cur.Status}
	}
	saved, err := s.save(ctx, cur, func(next *domain.Subscriber) {
		next.Status = to
		mutate(next)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(cur.Status), string(to))
	s.log.Infow("Subscriber transition committed",
		"operation", op, "subscriberID", saved.ID, "from", cur.Status, "to", to, "version", saved.Version)
	s.publish(ctx, domain.NewSubscriberEvent(op, cur.Status, saved, s.now()))
	return saved, nil
}

// save CAS без смены статуса и без события
func (s *subscriberService) save(ctx context.Context, cur *domain.Subscriber, mutate func(next *domain.Subscriber)) (*domain.Subscriber, error) {
	next := cur.Clone()
	mutate(next)
	saved, err := s.subscribers.CompareAndSwap(ctx, next, cur.Status)
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			s.log.Debugw("Stale subscriber write", "subscriberID", cur.ID, "expected", cur.Status, "version", cur.Version)
			return nil, &domain.ConcurrencyConflict{SubscriberID: cur.ID.String(), Expected: cur.Status}
		}
		s.log.Errorw("Failed to write subscriber", "subscriberID", cur.ID, "error", err)
		return nil, mapRepoError(err, "subscriber", cur.ID.String())
	}
	return saved, nil
}

func (s *subscriberService) publish(ctx context.Context, event domain.SubscriberEvent) {
	pubCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.publisher.PublishSubscriberEvent(pubCtx, event); err != nil {
			s.log.Warnw("Failed to publish subscriber event",
				"subscriberID", event.SubscriberID, "operation", event.Operation, "error", err)
		}
	}()
}

func (s *subscriberService) load(ctx context.Context, id uuid.UUID) (*domain.Subscriber, *domain.Project, error) {
	sub, err := s.subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(err, "subscriber", id.String())
	}
	project, err := s.projects.GetByID(ctx, sub.ProjectID)
	if err != nil {
		return nil, nil, mapRepoError(err, "project", sub.ProjectID.String())
	}
	return sub, project, nil
}

func (s *subscriberService) withBot(ctx context.Context, project *domain.Project, fn func(bot telegram.Bot) error) error {
	bot, err := s.bots.Bot(ctx, project.BotToken)
	if err != nil {
		return err
	}
	return fn(bot)
}

// issueInvite создаёт одноразовую ссылку и сохраняет её; сбой попадает в warnings
func (s *subscriberService) issueInvite(ctx context.Context, project *domain.Project, res *Result) string {
	sub := res.Subscriber
	var expireAt time.Time
	if sub.ExpiryDate != nil {
		expireAt = *sub.ExpiryDate
	}

	var link string
	err := s.withBot(ctx, project, func(bot telegram.Bot) error {
		var err error
		link, err = bot.CreateInviteLink(ctx, project.ChannelID, expireAt)
		return err
	})
	if err != nil {
		s.log.Warnw("Failed to create invite link", "subscriberID", sub.ID, "error", err)
		res.warn("invite link: %v", err)
		return ""
	}

	saved, err := s.save(ctx, sub, func(next *domain.Subscriber) { next.InviteLink = link })
	if err != nil {
		s.log.Warnw("Failed to store invite link", "subscriberID", sub.ID, "error", err)
		res.warn("store invite link: %v", err)
		return link
	}
	res.Subscriber = saved
	return link
}

func (s *subscriberService) removeMember(ctx context.Context, project *domain.Project, res *Result) {
	sub := res.Subscriber
	err := s.withBot(ctx, project, func(bot telegram.Bot) error {
		return bot.RemoveMember(ctx, project.ChannelID, sub.TelegramUserID)
	})
	if err != nil {
		s.log.Warnw("Failed to remove channel member", "subscriberID", sub.ID, "error", err)
		res.warn("remove member: %v", err)
	}
}

func (s *subscriberService) notify(ctx context.Context, project *domain.Project, res *Result, note domain.Notification) {
	if err := s.notifier.Notify(ctx, project, res.Subscriber, note); err != nil {
		res.warn("notification %s: %v", note.Action, err)
	}
}

func approvable(st domain.Status) bool {
	switch st {
	case domain.StatusPendingPayment, domain.StatusAwaitingProof, domain.StatusPendingApproval,
		domain.StatusActive, domain.StatusExpired:
		return true
	}
	return false
}

func samePlan(sub *domain.Subscriber, plan *domain.Plan) bool {
	return sub.PlanID != nil && *sub.PlanID == plan.ID
}

func cleanReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxReasonRunes {
		return "", domain.NewValidationError("reason", fmt.Sprintf("must not exceed %d characters", maxReasonRunes))
	}
	return reason, nil
}

// mapRepoError переводит ошибки хранилища в доменные
func mapRepoError(err error, entity, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewNotFoundError(entity, id)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrDuplicate)
	default:
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
}
