package handlers

import (
	"net/http"

	"github.com/Dhoini/channel-access-bot/internal/api/rest/middleware"
	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/service"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/Dhoini/channel-access-bot/pkg/req"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReasonRequest тело reject/suspend
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ExtendRequest тело extend
type ExtendRequest struct {
	Days int `json:"days" validate:"required,min=1,max=3650"`
}

// ApproveRequest необязательное тело approve.
// ExpectedVersion версия, которую видел администратор: при расхождении ответ 409.
type ApproveRequest struct {
	PlanID          string `json:"plan_id" validate:"omitempty,uuid"`
	ProofRef        string `json:"proof_ref" validate:"max=1024"`
	ExpectedVersion int64  `json:"expected_version" validate:"omitempty,min=1"`
}

// WebhookResponse ответ регистрации вебхука
type WebhookResponse struct {
	URL string `json:"url"`
}

// AdminHandler административные действия над подписчиками
type AdminHandler struct {
	subscribers service.SubscriberService
	webhooks    service.WebhookService
	log         *logger.Logger
}

// NewAdminHandler создает обработчик административного API
func NewAdminHandler(subscribers service.SubscriberService, webhooks service.WebhookService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{subscribers: subscribers, webhooks: webhooks, log: log}
}

func (h *AdminHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.log, domain.NewValidationError("id", "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) respond(c *gin.Context, result *service.Result, err error) {
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	c.JSON(http.StatusOK, result)
}

// GetSubscriber GET /subscribers/:id
func (h *AdminHandler) GetSubscriber(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	sub, err := h.subscribers.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.respond(c, &service.Result{Subscriber: sub}, nil)
}

// Approve POST /subscribers/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	body, err := req.HandleBody[ApproveRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	opts := service.ApproveOptions{ProofRef: body.ProofRef, ExpectedVersion: body.ExpectedVersion}
	if body.PlanID != "" {
		planID := uuid.MustParse(body.PlanID)
		opts.PlanID = &planID
	}
	result, err := h.subscribers.Approve(c.Request.Context(), id, opts)
	h.logAction(c, "approve", id, err)
	h.respond(c, result, err)
}

// Reject POST /subscribers/:id/reject {reason}
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	body, err := req.HandleBody[ReasonRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	result, err := h.subscribers.Reject(c.Request.Context(), id, body.Reason)
	h.logAction(c, "reject", id, err)
	h.respond(c, result, err)
}

// Suspend POST /subscribers/:id/suspend {reason}
func (h *AdminHandler) Suspend(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	body, err := req.HandleBody[ReasonRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	result, err := h.subscribers.Suspend(c.Request.Context(), id, body.Reason)
	h.logAction(c, "suspend", id, err)
	h.respond(c, result, err)
}

// Reactivate POST /subscribers/:id/reactivate
func (h *AdminHandler) Reactivate(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.subscribers.Reactivate(c.Request.Context(), id)
	h.logAction(c, "reactivate", id, err)
	h.respond(c, result, err)
}

// Extend POST /subscribers/:id/extend {days}
func (h *AdminHandler) Extend(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	body, err := req.HandleBody[ExtendRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}
	result, err := h.subscribers.Extend(c.Request.Context(), id, body.Days)
	h.logAction(c, "extend", id, err)
	h.respond(c, result, err)
}

// Revoke POST /subscribers/:id/revoke
func (h *AdminHandler) Revoke(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.subscribers.Revoke(c.Request.Context(), id)
	h.logAction(c, "revoke", id, err)
	h.respond(c, result, err)
}

// RegisterWebhook POST /projects/:id/webhook
func (h *AdminHandler) RegisterWebhook(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	url, err := h.webhooks.Register(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{URL: url})
}

func (h *AdminHandler) logAction(c *gin.Context, action string, id uuid.UUID, err error) {
	operator := c.GetString(string(middleware.ContextOperatorKey))
	if err != nil {
		h.log.Warnw("Admin action failed", "action", action, "subscriberID", id, "operator", operator, "error", err)
		return
	}
	h.log.Infow("Admin action applied", "action", action, "subscriberID", id, "operator", operator)
}
