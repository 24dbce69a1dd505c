package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const SessionCookieName = "session_token"

// CookieManager issues and clears the client-held session cookie.
// The cookie is HttpOnly, SameSite=Lax, scoped to the configured parent
// domain so sibling client applications share the session, and capped at
// MaxAge regardless of token expiry.
type CookieManager struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

func NewCookieManager(domain string, secure bool, maxAge time.Duration) *CookieManager {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &CookieManager{Domain: domain, Secure: secure, MaxAge: maxAge}
}

// SetSession attaches the token to the response as the session cookie.
func (m *CookieManager) SetSession(c *gin.Context, tokenStr string, exp time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, tokenStr, m.maxAgeFrom(exp), "/", m.Domain, m.Secure, true)
}

// ClearSession expires the session cookie immediately. Idempotent.
func (m *CookieManager) ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", m.Domain, m.Secure, true)
}

func (m *CookieManager) maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if cap := int(m.MaxAge.Seconds()); sec > cap {
		sec = cap
	}
	if sec < 0 {
		return 0
	}
	return sec
}
