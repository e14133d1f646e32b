package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	"github.com/xxxsen/coachrag/internal/pkg/jwt"
)

var testSecret = []byte("test-secret")

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), JWTAuth(testSecret))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserIDKey), "tier": string(Tier(c))})
	})
	r.GET("/admin", RequireRole(jwt.RoleService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func bodyCode(t *testing.T, rec *httptest.ResponseRecorder) float64 {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	code, _ := body["code"].(float64)
	return code
}

func TestJWTAuth(t *testing.T) {
	r := newAuthRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, float64(errcode.ErrUnauthorized), bodyCode(t, rec))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	token, err := jwt.GenerateToken("u1", "", jwt.RoleAuthenticated, "premium", testSecret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user":"u1","tier":"premium"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, float64(errcode.ErrForbidden), bodyCode(t, rec))
}

func TestTierFromClaims(t *testing.T) {
	require.Equal(t, model.AccessTierPro, tierFromClaims(&jwt.Claims{Role: jwt.RoleService}))
	require.Equal(t, model.AccessTierFree, tierFromClaims(&jwt.Claims{AppMetadata: jwt.AppMetadata{SubscriptionTier: "gold"}}))
	require.Equal(t, model.AccessTierPremium, tierFromClaims(&jwt.Claims{AppMetadata: jwt.AppMetadata{SubscriptionTier: "Premium"}}))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
