package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pricing_backend/utils"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/private", AuthMiddleware(), func(c *gin.Context) {
		claim := CtxValue(c.Request.Context())
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"role": claim.Role, "user_id": userId})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")
	token, err := utils.JwtGenerate(7, "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	r := newRouter()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, w.Code)
		}
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Fatalf("expected correlation id to be echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if got := w.Header().Get(CorrelationHeader); got == "" {
		t.Fatalf("expected a generated correlation id")
	}
}
