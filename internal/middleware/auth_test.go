package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	claims := TokenClaims{Sub: "owner-1", Exp: time.Now().Add(time.Hour).Unix(), Issuer: "mediaforge"}
	token, err := SignToken("secret", claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := VerifyToken("secret", token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Sub != "owner-1" || got.Issuer != "mediaforge" {
		t.Fatalf("claims = %+v", got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _ := SignToken("secret", TokenClaims{Sub: "owner-1"})
	if _, err := VerifyToken("other", token); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, _ := SignToken("secret", TokenClaims{Sub: "owner-1", Exp: time.Now().Add(-time.Minute).Unix()})
	if _, err := VerifyToken("secret", token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	for _, token := range []string{"", "a.b", "a.b.c.d", "!!!.@@@.###"} {
		if _, err := VerifyToken("secret", token); err == nil {
			t.Fatalf("malformed token %q accepted", token)
		}
	}
}

func TestAuthMiddlewareInjectsOwner(t *testing.T) {
	token, _ := SignToken("secret", TokenClaims{Sub: "owner-1", Exp: time.Now().Add(time.Hour).Unix()})

	var gotOwner string
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = OwnerIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if gotOwner != "owner-1" {
		t.Fatalf("owner = %q", gotOwner)
	}
}

func TestAuthMiddlewareRejectsMissingAndBadHeaders(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without valid token")
	}))

	cases := []string{"", "Basic abc", "Bearer not-a-token"}
	for _, header := range cases {
		r := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: code = %d, want 401", header, w.Code)
		}
	}
}
