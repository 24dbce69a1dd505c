package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/platformlab/auth-service/config"
	userapp "github.com/platformlab/auth-service/internal/application"
	"github.com/platformlab/auth-service/pkg/helpers"
	"github.com/platformlab/auth-service/pkg/response"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateCookie    = "oauth_state"
	businessCookie = "oauth_business"
)

// OAuthHandler drives the Google consent flow. The provider handshake is
// treated as an external collaborator returning a verified principal; the
// rest behaves as login/signup.
type OAuthHandler struct {
	Svc     *userapp.Service
	Cfg     *config.Config
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
	Client  *http.Client
}

func NewOAuthHandler(svc *userapp.Service, cfg *config.Config, logger *logrus.Logger, cookies *helpers.CookieManager) *OAuthHandler {
	return &OAuthHandler{
		Svc:     svc,
		Cfg:     cfg,
		Logger:  logger,
		Cookies: cookies,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GoogleRedirect GET /api/users/oauth/google?business=...
func (h *OAuthHandler) GoogleRedirect(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "state generation failed", nil)
		return
	}
	secure := h.Cfg.CookieSecure
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", h.Cfg.CookieDomain, secure, true)
	if b := c.Query("business"); b != "" {
		c.SetCookie(businessCookie, b, 600, "/", h.Cfg.CookieDomain, secure, true)
	}

	params := url.Values{
		"client_id":     {h.Cfg.GoogleClientID},
		"redirect_uri":  {h.Cfg.GoogleRedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	c.Redirect(http.StatusFound, googleAuthURL+"?"+params.Encode())
}

// GoogleCallback GET /api/users/oauth/google/callback?code=...&state=...
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	wantState, err := c.Cookie(stateCookie)
	if err != nil || wantState == "" || c.Query("state") != wantState {
		response.Error[any](c, http.StatusBadRequest, "invalid oauth state", nil)
		return
	}
	code := c.Query("code")
	if code == "" {
		response.Error[any](c, http.StatusBadRequest, "missing authorization code", nil)
		return
	}

	principal, err := h.exchange(c.Request.Context(), code)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).Warn("google exchange failed")
		}
		response.Error[any](c, http.StatusBadGateway, "identity provider unavailable", nil)
		return
	}
	if business, cerr := c.Cookie(businessCookie); cerr == nil && business != "" {
		principal.Business = business
	}
	if principal.Business == "" {
		principal.Business = "default"
	}

	u, sess, created, err := h.Svc.ExternalLogin(c.Request.Context(), *principal)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "external login failed", nil)
		return
	}

	h.Cookies.SetSession(c, sess.Token, sess.ExpiresAt)
	status := http.StatusOK
	msg := "login successful"
	if created {
		status = http.StatusCreated
		msg = "account created"
	}
	response.Success(c, status, userView(u), msg, gin.H{"expires_at": sess.ExpiresAt})
}

// exchange trades the authorization code for tokens and resolves the
// verified profile.
func (h *OAuthHandler) exchange(ctx context.Context, code string) (*userapp.ExternalPrincipal, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {h.Cfg.GoogleClientID},
		"client_secret": {h.Cfg.GoogleClientSecret},
		"redirect_uri":  {h.Cfg.GoogleRedirectURL},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("empty access token from provider")
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	infoReq.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)

	infoResp, err := h.Client.Do(infoReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = infoResp.Body.Close() }()
	if infoResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", infoResp.StatusCode)
	}

	var profile struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	if profile.Email == "" || !profile.EmailVerified {
		return nil, errors.New("provider did not return a verified email")
	}

	return &userapp.ExternalPrincipal{
		Email:    profile.Email,
		Name:     profile.Name,
		Provider: "google",
	}, nil
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
