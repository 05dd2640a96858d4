package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type auditWriterStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, method+" "+path)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(claims *models.JWTClaims, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(validatorStub{claims: claims})}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/things/:id", chain...)
	return r
}

func serve(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/things/BD-000001", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	r := newRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
}

func TestRequireAdmin(t *testing.T) {
	user := newRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleUser}, RequireAdmin())
	assert.Equal(t, http.StatusForbidden, serve(user, "Bearer good").Code)

	admin := newRouter(&models.JWTClaims{UserID: "a1", Role: models.RoleSuperAdmin}, RequireAdmin())
	assert.Equal(t, http.StatusNoContent, serve(admin, "Bearer good").Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	writer := &auditWriterStub{}
	r := newRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleUser}, Audit(writer, nil, models.AuditActionProfileEdit, "profile"))

	serve(r, "Bearer good")
	serve(r, "Bearer bad")

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionProfileEdit, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "BD-000001", *entry.ResourceID)
	assert.NotEmpty(t, entry.ID)
}

func TestAuditFailureDoesNotChangeResponse(t *testing.T) {
	writer := &auditWriterStub{err: errors.New("db down")}
	r := newRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleUser}, Audit(writer, nil, models.AuditActionProfileDelete, "profile"))
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "")
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"GET /things/:id", "GET unmatched"}, observer.paths)
}

func TestResponseMeta(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SetCacheHit(c, true)
	SetMeta(c, "changed", false)

	meta := ResponseMeta(c)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, false, meta["changed"])
	assert.NotContains(t, meta, "processing_time_ms")
}

func TestResponseMetaStampsProcessingTime(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/profiles", func(c *gin.Context) {
		meta = ResponseMeta(c)
		c.Status(http.StatusOK)
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profiles", nil))
	assert.Contains(t, meta, "processing_time_ms")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.Nil(t, ResponseMeta(c))
}
