package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-grading/internal/exam"
	"github.com/mind-engage/mindengage-grading/internal/rbac"
)

func TestExtractUserID(t *testing.T) {
	a := NewAuthService("secret")
	tok, err := a.IssueJWT(42, "student")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	for _, cred := range []string{tok, "Bearer " + tok, "bearer " + tok} {
		id, err := a.ExtractUserID(cred)
		if err != nil || id != 42 {
			t.Fatalf("ExtractUserID(%.12q...) = %d, %v", cred, id, err)
		}
	}
}

func TestExtractUserIDRejects(t *testing.T) {
	a := NewAuthService("secret")
	other, _ := NewAuthService("other").IssueJWT(42, "student")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Sub: "42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredTok, _ := expired.SignedString([]byte("secret"))

	named := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Sub: "alice"})
	namedTok, _ := named.SignedString([]byte("secret"))

	cases := map[string]string{
		"empty":        "",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": other,
		"expired":      expiredTok,
		"non-numeric":  namedTok,
	}
	for name, cred := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := a.ExtractUserID(cred); !errors.Is(err, exam.ErrUnauthenticated) {
				t.Fatalf("err = %v, want unauthenticated", err)
			}
		})
	}
}

func TestJWTMiddlewareSetsContext(t *testing.T) {
	a := NewAuthService("secret")
	tok, _ := a.IssueJWT(7, "examiner")

	var gotUID int64
	var gotRole, gotTok string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserIDFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
		gotTok = TokenFromContext(r.Context())
	}))

	// some clients send the token without the scheme
	for _, header := range []string{"Bearer " + tok, tok} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if gotUID != 7 || gotRole != "examiner" || gotTok != tok {
			t.Fatalf("context = %d %q %q", gotUID, gotRole, gotTok)
		}
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("secret")
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached")
	}))
	for _, header := range []string{"", "Bearer ", "Bearer junk"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d", header, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["message"] == "" {
			t.Fatalf("body = %q", rec.Body.String())
		}
	}
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("secret")
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := LoginHandler(a, LoginAccount{Username: "admin", UserID: 1, PassHash: string(hash), Role: "admin"})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	c, err := a.Parse(out["access_token"])
	if err != nil || c.Sub != "1" || c.Role != "admin" {
		t.Fatalf("claims = %+v, %v", c, err)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rec.Code)
	}
}
