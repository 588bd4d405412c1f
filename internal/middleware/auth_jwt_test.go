package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func protected(t *testing.T) http.Handler {
	t.Helper()
	return AuthJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", UserIDFromContext(r.Context()))
		w.Header().Set("X-Locale-Seen", LocaleFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
}

func mustSign(t *testing.T, claims TokenClaims, secret string) string {
	t.Helper()
	token, err := SignJWT(secret, claims)
	if err != nil {
		t.Fatalf("SignJWT error: %v", err)
	}
	return token
}

func TestAuthJWTAcceptsValidToken(t *testing.T) {
	token := mustSign(t, NewClaims("user-1", "id-ID", time.Hour), testSecret)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-User") != "user-1" {
		t.Fatalf("user = %q", rec.Header().Get("X-User"))
	}
	if rec.Header().Get("X-Locale-Seen") != "id" {
		t.Fatalf("locale = %q", rec.Header().Get("X-Locale-Seen"))
	}
}

func TestAuthJWTRejects(t *testing.T) {
	expired := NewClaims("user-1", "", time.Hour)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := NewClaims("", "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, NewClaims("user-1", "", time.Hour)).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"empty bearer":   "Bearer ",
		"bad signature":  "Bearer " + mustSign(t, NewClaims("user-1", "", time.Hour), "other-secret"),
		"expired":        "Bearer " + mustSign(t, expired, testSecret),
		"no subject":     "Bearer " + mustSign(t, noSubject, testSecret),
		"alg none":       "Bearer " + none,
		"garbage":        "Bearer not.a.jwt",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protected(t).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != "unauthorized" || body.Error.Message == "" {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestAuthJWTWebsocketQueryToken(t *testing.T) {
	token := mustSign(t, NewClaims("user-ws", "", time.Hour), testSecret)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/x/watch?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	protected(t).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-User") != "user-ws" {
		t.Fatalf("websocket query token rejected: %d", rec.Code)
	}

	plain := httptest.NewRequest(http.MethodGet, "/v1/jobs?access_token="+token, nil)
	rec = httptest.NewRecorder()
	protected(t).ServeHTTP(rec, plain)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query token must only be honoured for websocket upgrades, got %d", rec.Code)
	}
}

func TestSignJWTRequiresSecret(t *testing.T) {
	if _, err := SignJWT("", NewClaims("u", "", time.Hour)); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
