package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformlab/auth-service/pkg/helpers"
	"github.com/platformlab/auth-service/pkg/response"
	"github.com/platformlab/auth-service/pkg/token"
)

const (
	CtxUserIDKey   = "userID"
	CtxBusinessKey = "business"
	CtxClaimsKey   = "claims"
)

// BearerToken pulls the token from the Authorization header, falling back
// to the session cookie.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if t, err := c.Cookie(helpers.SessionCookieName); err == nil {
		return t
	}
	return ""
}

// Auth validates the session token with the public-key verifier and
// injects the claims into the Gin context. The middleware never touches
// the private key.
func Auth(verifier token.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing token", nil)
			c.Abort()
			return
		}
		claims, err := verifier.Verify(tok)
		if err != nil {
			var terr *token.TokenError
			code := ""
			if errors.As(err, &terr) {
				code = string(terr.Kind)
			}
			response.ErrorCode[any](c, http.StatusUnauthorized, "invalid token", code, nil)
			c.Abort()
			return
		}
		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxBusinessKey, claims.Business)
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}
