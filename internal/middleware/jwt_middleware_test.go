package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
)

var testSecret = []byte("test-secret")

func token(t *testing.T, claims auth.CallerClaims, ttl time.Duration) string {
	t.Helper()
	tok, _, err := auth.GenerateCallerJWT(claims, testSecret, ttl)
	if err != nil {
		t.Fatalf("GenerateCallerJWT failed: %v", err)
	}
	return tok
}

func TestCallerJWTMiddleware_Success(t *testing.T) {
	var got *auth.CallerClaims
	handler := CallerJWTMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetCallerClaims(r.Context())
		if !ok {
			t.Error("caller claims not found in context")
		}
		got = claims
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.CallerClaims{
		CallerID: "user-1", OrganizationID: "org-1", Tier: models.TierProfessional,
	}, time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got.CallerID != "user-1" || got.OrganizationID != "org-1" || got.Tier != models.TierProfessional {
		t.Errorf("Unexpected claims: %+v", got)
	}
}

func TestCallerJWTMiddleware_Rejects(t *testing.T) {
	handler := CallerJWTMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Next handler should not be called")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + token(t, auth.CallerClaims{CallerID: "u"}, -time.Minute)},
	}

	other, _, err := auth.GenerateCallerJWT(auth.CallerClaims{CallerID: "u"}, []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tests = append(tests, struct {
		name   string
		header string
	}{"wrong secret", "Bearer " + other})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/brain/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestRequirePlatformAdmin(t *testing.T) {
	handler := CallerJWTMiddleware(testSecret)(RequirePlatformAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for _, tc := range []struct {
		admin bool
		want  int
	}{{false, http.StatusForbidden}, {true, http.StatusNoContent}} {
		req := httptest.NewRequest(http.MethodPost, "/admin/providers/reload", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, auth.CallerClaims{CallerID: "ops", PlatformAdmin: tc.admin}, time.Hour))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("admin=%v: expected %d, got %d", tc.admin, tc.want, w.Code)
		}
	}

	// Without the JWT middleware there are no claims
	w := httptest.NewRecorder()
	RequirePlatformAdmin(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}
