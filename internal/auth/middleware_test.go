package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"med-reminder/internal/config"

	"github.com/gin-gonic/gin"
)

func newProtectedRouter(t *testing.T) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := NewManager(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	r := gin.New()
	r.Use(RequireServiceToken(m))
	r.GET("/who", func(c *gin.Context) {
		svc, err := Service(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": svc})
	})
	return r, m
}

func TestRequireServiceToken_MissingHeader(t *testing.T) {
	r, _ := newProtectedRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireServiceToken_BadToken(t *testing.T) {
	r, _ := newProtectedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireServiceToken_InjectsCaller(t *testing.T) {
	r, m := newProtectedRouter(t)

	tok, err := m.IssueServiceToken(time.Now(), "scheduler")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if want := `"service":"scheduler"`; !strings.Contains(w.Body.String(), want) {
		t.Fatalf("expected %s in body, got %s", want, w.Body.String())
	}
}
