package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellersync/backend/internal/domain/marketplace"
	"github.com/sellersync/backend/internal/infrastructure/auth"
	"github.com/sellersync/backend/internal/infrastructure/config"
)

type fakeSessionStore struct {
	session *marketplace.Session
	loadErr error
	saved   *marketplace.Session
	saveErr error
}

func (f *fakeSessionStore) Load(ctx context.Context) (*marketplace.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.session == nil {
		return nil, marketplace.ErrNoSession
	}
	return f.session, nil
}

func (f *fakeSessionStore) Save(ctx context.Context, session *marketplace.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = session
	f.session = session
	return nil
}

type fakeCredentialProvider struct {
	exchangeCred *marketplace.Credential
	exchangeErr  error
	refreshCred  *marketplace.Credential
	refreshErr   error
	gotCode      string
	gotRefresh   string
}

func (f *fakeCredentialProvider) Refresh(ctx context.Context, refreshToken string) (*marketplace.Credential, error) {
	f.gotRefresh = refreshToken
	return f.refreshCred, f.refreshErr
}

func (f *fakeCredentialProvider) Exchange(ctx context.Context, code string) (*marketplace.Credential, error) {
	f.gotCode = code
	return f.exchangeCred, f.exchangeErr
}

func (f *fakeCredentialProvider) AuthorizeURL(state string) string {
	return "https://auth.test/authorization?response_type=code&state=" + url.QueryEscape(state)
}

type fakeOrderSource struct {
	seller     *marketplace.SellerIdentity
	resolveErr error
}

func (f *fakeOrderSource) ResolveSeller(ctx context.Context, accessToken string) (*marketplace.SellerIdentity, error) {
	return f.seller, f.resolveErr
}

func (f *fakeOrderSource) SearchOrders(ctx context.Context, accessToken string, sellerID int64, offset, limit int) (*marketplace.OrderPage, error) {
	return nil, errors.New("not used")
}

func (f *fakeOrderSource) GetItem(ctx context.Context, accessToken, itemID string) (*marketplace.Item, error) {
	return nil, errors.New("not used")
}

type authRig struct {
	router   *gin.Engine
	sessions *fakeSessionStore
	creds    *fakeCredentialProvider
	source   *fakeOrderSource
	state    *auth.StateService
}

func newAuthRig() *authRig {
	gin.SetMode(gin.TestMode)
	rig := &authRig{
		sessions: &fakeSessionStore{},
		creds: &fakeCredentialProvider{
			exchangeCred: &marketplace.Credential{
				AccessToken:  "APP_USR-access",
				RefreshToken: "TG-refresh",
				ExpiresAt:    time.Now().Add(6 * time.Hour),
			},
		},
		source: &fakeOrderSource{
			seller: &marketplace.SellerIdentity{ID: 123456, Nickname: "TESTSELLER"},
		},
		state: auth.NewStateService(config.JWTConfig{
			Secret:   "test-secret-key-for-state-signing",
			Issuer:   "sellersync-test",
			StateTTL: time.Minute,
		}),
	}

	h := NewAuthHandler(rig.sessions, rig.creds, rig.source, rig.state, zap.NewNop())
	rig.router = gin.New()
	h.RegisterRoutes(rig.router.Group("/api/v1"))
	return rig
}

func (rig *authRig) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

func TestAuthStart(t *testing.T) {
	rig := newAuthRig()

	w := rig.get("/api/v1/auth/meli/start")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			AuthorizeURL string `json:"authorize_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	parsed, err := url.Parse(resp.Data.AuthorizeURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	// The state must verify with the same service that issued it
	assert.NoError(t, rig.state.Verify(state))
}

func TestAuthCallback_EstablishesSession(t *testing.T) {
	rig := newAuthRig()
	state, err := rig.state.Issue()
	require.NoError(t, err)

	w := rig.get("/api/v1/auth/meli/callback?code=TG-code-123&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "TG-code-123", rig.creds.gotCode)
	require.NotNil(t, rig.sessions.saved)
	assert.Equal(t, int64(123456), rig.sessions.saved.SellerID)
	assert.Equal(t, "TESTSELLER", rig.sessions.saved.Nickname)
	assert.Equal(t, "APP_USR-access", rig.sessions.saved.Credential.AccessToken)
	assert.Equal(t, "TG-refresh", rig.sessions.saved.Credential.RefreshToken)

	var resp struct {
		Data struct {
			Connected bool   `json:"connected"`
			SellerID  int64  `json:"seller_id"`
			Nickname  string `json:"nickname"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Connected)
	assert.Equal(t, "TESTSELLER", resp.Data.Nickname)
}

func TestAuthCallback_RejectsForgedState(t *testing.T) {
	rig := newAuthRig()

	w := rig.get("/api/v1/auth/meli/callback?code=TG-code&state=not-a-real-state")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, rig.sessions.saved)
	assert.Empty(t, rig.creds.gotCode)
}

func TestAuthCallback_MissingCode(t *testing.T) {
	rig := newAuthRig()
	state, err := rig.state.Issue()
	require.NoError(t, err)

	w := rig.get("/api/v1/auth/meli/callback?state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthCallback_ExchangeFails(t *testing.T) {
	rig := newAuthRig()
	rig.creds.exchangeErr = marketplace.ErrSessionExpired
	state, err := rig.state.Issue()
	require.NoError(t, err)

	w := rig.get("/api/v1/auth/meli/callback?code=bad&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_SESSION_EXPIRED")
}

func TestAuthStatus_NotConnected(t *testing.T) {
	rig := newAuthRig()

	w := rig.get("/api/v1/auth/meli/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Connected bool `json:"connected"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Connected)
}

func TestAuthStatus_Connected(t *testing.T) {
	rig := newAuthRig()
	rig.sessions.session = &marketplace.Session{
		SellerID: 99,
		Nickname: "SHOP",
		Credential: marketplace.Credential{
			AccessToken:  "tok",
			RefreshToken: "ref",
		},
		UpdatedAt: time.Now(),
	}

	w := rig.get("/api/v1/auth/meli/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Connected bool   `json:"connected"`
			SellerID  int64  `json:"seller_id"`
			Nickname  string `json:"nickname"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Connected)
	assert.Equal(t, int64(99), resp.Data.SellerID)
	assert.Equal(t, "SHOP", resp.Data.Nickname)
}

func TestAuthRefresh_RotatesCredential(t *testing.T) {
	rig := newAuthRig()
	rig.sessions.session = &marketplace.Session{
		SellerID: 99,
		Nickname: "SHOP",
		Credential: marketplace.Credential{
			AccessToken:  "old-access",
			RefreshToken: "old-refresh",
		},
	}
	rig.creds.refreshCred = &marketplace.Credential{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    time.Now().Add(6 * time.Hour),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/meli/refresh", nil)
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "old-refresh", rig.creds.gotRefresh)
	require.NotNil(t, rig.sessions.saved)
	assert.Equal(t, "new-access", rig.sessions.saved.Credential.AccessToken)
	assert.Equal(t, "new-refresh", rig.sessions.saved.Credential.RefreshToken)
}

func TestAuthRefresh_NoSession(t *testing.T) {
	rig := newAuthRig()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/meli/refresh", nil)
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NO_SESSION")
}
