package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papersearch/internal/pkg/jwt"
)

func newTestContext(method, path string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, path, nil)
	c.Request.RemoteAddr = "10.0.0.1:1234"
	return c
}

func TestRateLimiterHandle_BlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(0.001, 2, 16)

	for i := 0; i < 2; i++ {
		c := newTestContext("POST", "/api/v1/search")
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
	c := newTestContext("POST", "/api/v1/search")
	limiter.handle(c)
	require.True(t, c.IsAborted())

	other := newTestContext("POST", "/api/v1/search")
	other.Request.RemoteAddr = "10.0.0.2:1234"
	limiter.handle(other)
	require.False(t, other.IsAborted())
}

func TestRateLimiterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(0, 1, 16)
	for i := 0; i < 5; i++ {
		c := newTestContext("POST", "/api/v1/search")
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
}

func TestRateLimiterBoundsKeys(t *testing.T) {
	limiter := newRateLimiter(1, 1, 2)
	limiter.bucket("a")
	limiter.bucket("b")
	limiter.bucket("c")
	require.Equal(t, 2, limiter.buckets.Len())
	require.False(t, limiter.buckets.Contains("a"))
}

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("secret")
	admin, err := jwt.GenerateToken("admin", jwt.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	viewer, err := jwt.GenerateToken("bob", "viewer", secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		aborted bool
	}{
		{name: "missing", header: "", aborted: true},
		{name: "not bearer", header: "Basic abc", aborted: true},
		{name: "bad token", header: "Bearer abc", aborted: true},
		{name: "wrong role", header: "Bearer " + viewer, aborted: true},
		{name: "admin", header: "Bearer " + admin, aborted: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext("POST", "/api/v1/admin/enrich")
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			AdminAuth(secret)(c)
			require.Equal(t, tt.aborted, c.IsAborted())
			if !tt.aborted {
				require.Equal(t, "admin", c.GetString(ContextSubjectKey))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestContext("GET", "/")
	RequestID()(c)
	id := GetRequestID(c)
	require.Len(t, id, 36)
	require.Equal(t, id, c.Writer.Header().Get(RequestIDHeader))

	c = newTestContext("GET", "/")
	c.Request.Header.Set(RequestIDHeader, "abc")
	RequestID()(c)
	require.Equal(t, "abc", GetRequestID(c))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestContext(http.MethodOptions, "/api/v1/search")
	c.Request.Header.Set("Origin", "https://app.example.org")
	CORS([]string{"https://app.example.org"})(c)
	require.True(t, c.IsAborted())
	require.Equal(t, "https://app.example.org", c.Writer.Header().Get("Access-Control-Allow-Origin"))

	c = newTestContext(http.MethodPost, "/api/v1/search")
	c.Request.Header.Set("Origin", "https://evil.example.org")
	CORS([]string{"https://app.example.org"})(c)
	require.False(t, c.IsAborted())
	require.Empty(t, c.Writer.Header().Get("Access-Control-Allow-Origin"))
}
