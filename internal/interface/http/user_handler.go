package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/platformlab/auth-service/internal/application"
	"github.com/platformlab/auth-service/internal/domain/entity"
	repo "github.com/platformlab/auth-service/internal/domain/repository"
	"github.com/platformlab/auth-service/internal/interface/middleware"
	"github.com/platformlab/auth-service/pkg/helpers"
	"github.com/platformlab/auth-service/pkg/response"
	"github.com/platformlab/auth-service/pkg/token"
	"github.com/platformlab/auth-service/pkg/validation"
)

type UserHandler struct {
	Svc      *userapp.Service
	Verifier token.Verifier
	Audit    repo.AuditRepository
	Logger   *logrus.Logger
	Cookies  *helpers.CookieManager
}

func NewUserHandler(svc *userapp.Service, verifier token.Verifier, audit repo.AuditRepository, logger *logrus.Logger, cookies *helpers.CookieManager) *UserHandler {
	return &UserHandler{Svc: svc, Verifier: verifier, Audit: audit, Logger: logger, Cookies: cookies}
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,pwd"`
	Business string `json:"business" binding:"required,business"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Business string `json:"business" binding:"required,business"`
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// audit records the action best-effort; a failed insert never fails the
// request.
func (h *UserHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	entry := &entity.AuditLog{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Metadata:  metadata,
	}
	if err := h.Audit.Insert(c.Request.Context(), entry); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("action", action).Warn("audit insert failed")
	}
}

func userView(u *entity.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"username":   u.Username,
		"name":       u.Name,
		"business":   u.Business,
		"created_at": u.CreatedAt,
	}
}

// Signup POST /api/users/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, sess, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Business: req.Business,
	})
	if err != nil {
		if errors.Is(err, userapp.ErrEmailTaken) {
			response.Error[any](c, http.StatusConflict, "email already registered", nil)
			return
		}
		if h.Logger != nil {
			h.Logger.WithError(err).Error("signup failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "signup failed", nil)
		return
	}

	h.Cookies.SetSession(c, sess.Token, sess.ExpiresAt)
	h.audit(c, u.ID, u.Email, "signup", gin.H{"business": u.Business})
	response.Success(c, http.StatusCreated, userView(u), "account created", gin.H{"expires_at": sess.ExpiresAt})
}

// Login POST /api/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, sess, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Same message for unknown email and wrong password.
		h.audit(c, "", userapp.NormalizeEmail(req.Email), "login_failed", gin.H{"business": req.Business})
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	h.Cookies.SetSession(c, sess.Token, sess.ExpiresAt)
	h.audit(c, u.ID, u.Email, "login", gin.H{"business": u.Business})
	response.Success(c, http.StatusOK, userView(u), "login successful", gin.H{"expires_at": sess.ExpiresAt})
}

// Logout POST /api/users/logout
// Clears the session cookie only; the token itself stays valid until its
// natural expiry (stateless verification, no server-side revocation).
func (h *UserHandler) Logout(c *gin.Context) {
	h.Cookies.ClearSession(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// VerifyToken GET /api/users/token/verify
// Stateless verification for client applications holding only the bearer
// token; responses carry the token-error subtype for client branching.
func (h *UserHandler) VerifyToken(c *gin.Context) {
	tok := middleware.BearerToken(c)
	if tok == "" {
		response.Error[any](c, http.StatusBadRequest, "missing token", nil)
		return
	}
	claims, err := h.Verifier.Verify(tok)
	if err != nil {
		var terr *token.TokenError
		code := ""
		if errors.As(err, &terr) {
			code = string(terr.Kind)
		}
		response.ErrorCode[any](c, http.StatusUnauthorized, "invalid token", code, nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"valid":      true,
		"user_id":    claims.UserID(),
		"business":   claims.Business,
		"provider":   claims.Provider,
		"issued_at":  claims.IssuedAt.Time,
		"expires_at": claims.ExpiresAt.Time,
	}, "token valid", nil)
}
