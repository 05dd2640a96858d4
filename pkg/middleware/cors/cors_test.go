package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.PUT("/drafts/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowedOriginIsEchoed(t *testing.T) {
	r := newEngine([]string{"https://app.example/"})

	req := httptest.NewRequest(http.MethodPut, "/drafts/me", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestUnknownOriginIsNotAllowed(t *testing.T) {
	r := newEngine([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodPut, "/drafts/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	r := newEngine(nil)

	req := httptest.NewRequest(http.MethodOptions, "/drafts/me", nil)
	req.Header.Set("Origin", "https://any.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "300", w.Header().Get("Access-Control-Max-Age"))
}

func TestWildcardSubdomainOrigin(t *testing.T) {
	r := newEngine([]string{"https://*.biodata.example"})

	for origin, want := range map[string]string{
		"https://admin.biodata.example": "https://admin.biodata.example",
		"https://biodata.example":       "",
		"http://admin.biodata.example":  "",
		"https://evilbiodata.example":   "",
	} {
		req := httptest.NewRequest(http.MethodPut, "/drafts/me", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestPreflightFromUnknownOriginIsRefused(t *testing.T) {
	r := newEngine([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodOptions, "/drafts/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
