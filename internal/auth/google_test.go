package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/rms"
	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/views"
)

func TestStartRedirectsWithState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService("client", "secret", "http://localhost/auth/google/callback", rms.NewService(rms.NewMemoryRepo()))

	r := gin.New()
	svc.RegisterRoutes(r)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/google/start", nil))
	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.Code)
	}
	loc, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in %s", loc)
	}
	if !svc.stateStore.consume(state) {
		t.Fatalf("expected state to be stored")
	}
	if svc.stateStore.consume(state) {
		t.Fatalf("expected state to be single use")
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService("client", "secret", "http://localhost/cb", rms.NewService(rms.NewMemoryRepo()))

	r := gin.New()
	views.Install(r)
	r.Use(middleware.Sessions(middleware.NewCookieStore("secret", false)))
	svc.RegisterRoutes(r)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=nope&code=abc", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Invalid or expired sign-in attempt.") {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestStateStoreExpiry(t *testing.T) {
	s := newStateStore()
	s.put("old", time.Now().Add(-time.Second))
	if s.consume("old") {
		t.Fatalf("expected expired state to be rejected")
	}
}
