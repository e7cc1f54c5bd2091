package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellersync/backend/internal/domain/marketplace"
	"github.com/sellersync/backend/internal/infrastructure/auth"
	"github.com/sellersync/backend/internal/interfaces/http/dto"
	"github.com/sellersync/backend/internal/interfaces/http/middleware"
)

// AuthHandler drives the marketplace OAuth connection lifecycle: start the
// authorization flow, receive the callback, inspect and refresh the session.
type AuthHandler struct {
	BaseHandler
	sessions marketplace.SessionStore
	creds    marketplace.CredentialProvider
	source   marketplace.OrderSource
	state    *auth.StateService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	sessions marketplace.SessionStore,
	creds marketplace.CredentialProvider,
	source marketplace.OrderSource,
	state *auth.StateService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		creds:    creds,
		source:   source,
		state:    state,
		logger:   logger,
	}
}

// RegisterRoutes registers marketplace auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	meli := rg.Group("/auth/meli")
	{
		meli.GET("/start", h.Start)
		meli.GET("/callback", h.Callback)
		meli.GET("/status", h.Status)
		meli.POST("/refresh", h.Refresh)
	}
}

// Start issues a signed anti-forgery state and returns the marketplace
// authorization URL the seller should visit.
func (h *AuthHandler) Start(c *gin.Context) {
	state, err := h.state.Issue()
	if err != nil {
		h.logger.Error("Failed to issue authorization state", zap.Error(err))
		h.InternalError(c, "Failed to start authorization")
		return
	}
	h.Success(c, dto.AuthStartResponse{
		AuthorizeURL: h.creds.AuthorizeURL(state),
	})
}

// Callback completes the authorization flow: verifies the state, exchanges
// the one-time code, resolves the seller identity, and persists the session.
func (h *AuthHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if err := h.state.Verify(req.State); err != nil {
		if errors.Is(err, auth.ErrExpiredState) {
			h.Unauthorized(c, "Authorization state expired, restart the flow")
			return
		}
		h.Unauthorized(c, "Invalid authorization state")
		return
	}

	credential, err := h.creds.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.logger.Error("Authorization code exchange failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	seller, err := h.source.ResolveSeller(c.Request.Context(), credential.AccessToken)
	if err != nil {
		h.logger.Error("Seller identity resolution failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	session := &marketplace.Session{
		SellerID:   seller.ID,
		Nickname:   seller.Nickname,
		Credential: *credential,
		UpdatedAt:  time.Now(),
	}
	if err := h.sessions.Save(c.Request.Context(), session); err != nil {
		h.logger.Error("Failed to persist marketplace session", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.logger.Info("Marketplace session established",
		zap.Int64("seller_id", session.SellerID),
		zap.String("nickname", session.Nickname),
	)
	h.Success(c, sessionStatus(session))
}

// Status reports whether a marketplace session is connected. A missing
// session is a normal state, not an error.
func (h *AuthHandler) Status(c *gin.Context) {
	session, err := h.sessions.Load(c.Request.Context())
	if err != nil {
		if errors.Is(err, marketplace.ErrNoSession) {
			h.Success(c, dto.AuthStatusResponse{Connected: false})
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, sessionStatus(session))
}

// Refresh forces a credential refresh outside a sync run. Useful to verify a
// connection is still alive without touching the ledger.
func (h *AuthHandler) Refresh(c *gin.Context) {
	session, err := h.sessions.Load(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	credential, err := h.creds.Refresh(c.Request.Context(), session.Credential.RefreshToken)
	if err != nil {
		h.logger.Error("Credential refresh failed", zap.Error(err))
		h.HandleError(c, err)
		return
	}

	session.Credential = *credential
	session.UpdatedAt = time.Now()
	if err := h.sessions.Save(c.Request.Context(), session); err != nil {
		h.logger.Error("Failed to persist refreshed session", zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, sessionStatus(session))
}

func sessionStatus(session *marketplace.Session) dto.AuthStatusResponse {
	return dto.AuthStatusResponse{
		Connected: true,
		SellerID:  session.SellerID,
		Nickname:  session.Nickname,
		UpdatedAt: session.UpdatedAt,
	}
}
