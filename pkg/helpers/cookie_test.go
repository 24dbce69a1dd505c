package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookieName {
			return ck
		}
	}
	t.Fatalf("no %s cookie set", SessionCookieName)
	return nil
}

func TestSetSessionAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	m := NewCookieManager("example.com", true, 7*24*time.Hour)
	m.SetSession(c, "tok123", time.Now().Add(12*time.Hour))

	ck := sessionCookie(t, w)
	assert.Equal(t, "tok123", ck.Value)
	assert.True(t, ck.HttpOnly, "must not be readable by client scripts")
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "example.com", ck.Domain)
	assert.Equal(t, "/", ck.Path)
	// Expiry within the token's 12h, well under the 7d cap.
	assert.InDelta(t, (12 * time.Hour).Seconds(), float64(ck.MaxAge), 5)
}

func TestSetSessionCapsMaxAge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	m := NewCookieManager("example.com", false, 7*24*time.Hour)
	m.SetSession(c, "tok", time.Now().Add(30*24*time.Hour))

	ck := sessionCookie(t, w)
	assert.LessOrEqual(t, ck.MaxAge, int((7 * 24 * time.Hour).Seconds()))
}

func TestClearSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	m := NewCookieManager("example.com", false, 0)
	m.ClearSession(c)

	ck := sessionCookie(t, w)
	require.Empty(t, ck.Value)
	assert.Negative(t, ck.MaxAge, "cookie must expire immediately")
}
