package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/sellersync/backend/internal/application/sync"
	"github.com/sellersync/backend/internal/interfaces/http/dto"
	"github.com/sellersync/backend/internal/interfaces/http/middleware"
)

// SyncEngine is the slice of the reconciliation engine the HTTP layer needs.
type SyncEngine interface {
	Sync(ctx context.Context, opts syncapp.Options) (*syncapp.SyncOutcome, error)
}

// SyncHandler exposes manual sync triggering and run monitoring.
type SyncHandler struct {
	BaseHandler
	engine  SyncEngine
	history *syncapp.RunHistory
	logger  *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(engine SyncEngine, history *syncapp.RunHistory, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		engine:  engine,
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync", h.TriggerSync)
	rg.GET("/sync/runs", h.ListRuns)
}

// TriggerSync runs one reconciliation pass synchronously and returns its
// outcome. The body is optional; dedupe and SKU enrichment default to on.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req dto.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	opts := syncapp.Options{
		Dedupe:     true,
		EnrichSKUs: true,
		MaxOrders:  req.MaxOrders,
	}
	if req.Dedupe != nil {
		opts.Dedupe = *req.Dedupe
	}
	if req.EnrichSKUs != nil {
		opts.EnrichSKUs = *req.EnrichSKUs
	}

	outcome, err := h.engine.Sync(c.Request.Context(), opts)
	h.history.Add(syncapp.NewRunRecord(syncapp.TriggerAPI, opts, outcome, err))

	if err != nil && outcome == nil {
		h.logger.Error("Sync run failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	if err != nil {
		// A partial outcome still carries the counts for the orders that were
		// reconciled before the failure; the outcome itself says so.
		h.logger.Warn("Sync run finished partially", zap.Error(err))
	}
	h.Success(c, outcome)
}

// ListRuns returns recent run records, newest first.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var req dto.RunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	h.Success(c, h.history.Recent(limit))
}
