package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voice-routing/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.Issue(now, Identity{UserID: "user-1", WorkspaceID: "ws-1", Role: "owner"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != (Identity{UserID: "user-1", WorkspaceID: "ws-1", Role: "owner"}) {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	tok, _ := m.Issue(now, Identity{UserID: "u", WorkspaceID: "w", Role: "owner"})

	if _, err := m.Verify(tok, now.Add(time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	other, _ := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "aud"})
	foreign, _ := other.Issue(now, Identity{UserID: "u", WorkspaceID: "w", Role: "owner"})
	if _, err := m.Verify(foreign, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected bad signature to be rejected, got %v", err)
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		id, ok := IdentityFrom(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.WorkspaceID)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	tok, _ := m.Issue(time.Now(), Identity{UserID: "u", WorkspaceID: "w1", Role: "owner"})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "w1" {
		t.Fatalf("expected 200 w1, got %d %q", w.Code, w.Body.String())
	}
}
