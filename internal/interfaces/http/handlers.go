package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/aggregation"
	"github.com/garyjia/workflow-engine/internal/domain/entity"
	domain "github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine *workflow.Engine
	inbox  *aggregation.View
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine *workflow.Engine, inbox *aggregation.View, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		inbox:  inbox,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

type createInstanceBody struct {
	TenantID   string            `json:"tenant_id" binding:"required"`
	TemplateID string            `json:"template_id" binding:"required"`
	StartedBy  string            `json:"started_by" binding:"required"`
	Metadata   map[string]string `json:"metadata"`
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var body createInstanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.CreateInstance(c.Request.Context(), workflow.CreateInstanceRequest{
		TenantID:   body.TenantID,
		TemplateID: body.TemplateID,
		StartedBy:  body.StartedBy,
		Metadata:   body.Metadata,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "tenant_id is required"})
		return
	}

	instance, err := h.engine.GetInstance(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// GetHistory handles GET /api/v1/instances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "tenant_id is required"})
		return
	}

	entries, err := h.engine.GetHistory(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

type approveStepBody struct {
	TenantID string `json:"tenant_id" binding:"required"`
	StepID   string `json:"step_id" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
	Comments string `json:"comments"`
}

// ApproveStep handles POST /api/v1/instances/:id/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	var body approveStepBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.ApproveStep(c.Request.Context(), workflow.ApproveStepRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		StepID:     body.StepID,
		ActorID:    body.ActorID,
		Comments:   body.Comments,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type rejectApprovalBody struct {
	TenantID string `json:"tenant_id" binding:"required"`
	StepID   string `json:"step_id" binding:"required"`
	Tier     int    `json:"tier" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// RejectApproval handles POST /api/v1/instances/:id/reject
func (h *Handlers) RejectApproval(c *gin.Context) {
	var body rejectApprovalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.RejectApproval(c.Request.Context(), workflow.RejectApprovalRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		StepID:     body.StepID,
		Tier:       body.Tier,
		ActorID:    body.ActorID,
		Reason:     body.Reason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type cascadeRejectionBody struct {
	TenantID string `json:"tenant_id" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// CascadeRejection handles POST /api/v1/instances/:id/cascade
func (h *Handlers) CascadeRejection(c *gin.Context) {
	var body cascadeRejectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.CascadeRejection(c.Request.Context(), workflow.CascadeRejectionRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		ActorID:    body.ActorID,
		Reason:     body.Reason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type resubmitBody struct {
	TenantID string            `json:"tenant_id" binding:"required"`
	ActorID  string            `json:"actor_id" binding:"required"`
	Changes  map[string]string `json:"changes"`
	Comments string            `json:"comments"`
}

// Resubmit handles POST /api/v1/instances/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	var body resubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Resubmit(c.Request.Context(), workflow.ResubmitRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		ActorID:    body.ActorID,
		Changes:    body.Changes,
		Comments:   body.Comments,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type cancelBody struct {
	TenantID string `json:"tenant_id" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
	Reason   string `json:"reason"`
}

// Cancel handles POST /api/v1/instances/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Cancel(c.Request.Context(), workflow.CancelRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		ActorID:    body.ActorID,
		Reason:     body.Reason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type appealBody struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	ActorID      string `json:"actor_id" binding:"required"`
	AppealReason string `json:"appeal_reason" binding:"required"`
}

// Appeal handles POST /api/v1/instances/:id/appeal
func (h *Handlers) Appeal(c *gin.Context) {
	var body appealBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Appeal(c.Request.Context(), workflow.AppealRequest{
		TenantID:     body.TenantID,
		InstanceID:   c.Param("id"),
		ActorID:      body.ActorID,
		AppealReason: body.AppealReason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type escalateBody struct {
	TenantID string `json:"tenant_id" binding:"required"`
	StepID   string `json:"step_id" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// EscalateStep handles POST /api/v1/instances/:id/escalate
func (h *Handlers) EscalateStep(c *gin.Context) {
	var body escalateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.EscalateStep(c.Request.Context(), workflow.EscalateStepRequest{
		TenantID:   body.TenantID,
		InstanceID: c.Param("id"),
		StepID:     body.StepID,
		ActorID:    body.ActorID,
		Reason:     body.Reason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

type addDelegationBody struct {
	TenantID  string    `json:"tenant_id" binding:"required"`
	FromUser  string    `json:"from_user" binding:"required"`
	ToUser    string    `json:"to_user" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

// AddDelegation handles POST /api/v1/delegations
func (h *Handlers) AddDelegation(c *gin.Context) {
	var body addDelegationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	rule := &entity.DelegationRule{
		ID:        uuid.New().String(),
		TenantID:  body.TenantID,
		FromUser:  body.FromUser,
		ToUser:    body.ToUser,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Active:    true,
	}

	if err := h.engine.AddDelegation(c.Request.Context(), rule); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: rule})
}

// PendingApprovals handles GET /api/v1/inbox
func (h *Handlers) PendingApprovals(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "tenant_id is required"})
		return
	}

	pending, err := h.inbox.PendingApprovals(c.Request.Context(), tenantID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Warn("Invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
}

// handleError maps the engine's error taxonomy to HTTP statuses.
func (h *Handlers) handleError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStateConflict):
		status = http.StatusConflict
	default:
		h.logger.Error("Request failed", zap.Error(err))
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
