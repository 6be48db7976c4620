package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rtdacademy/assessments/internal/rbac"
)

func staffAccount(t *testing.T) StaffAccount {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return StaffAccount{User: "staff", PassHash: string(hash)}
}

func login(t *testing.T, a *AuthService, staff StaffAccount, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	LoginHandler(a, staff)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rec
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("test-secret")
	staff := staffAccount(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"staff ok", `{"username":"staff","password":"s3cret","role":"teacher"}`, http.StatusOK},
		{"staff wrong password", `{"username":"staff","password":"nope","role":"teacher"}`, http.StatusUnauthorized},
		{"staff wrong user", `{"username":"other","password":"s3cret","role":"teacher"}`, http.StatusUnauthorized},
		{"student ok", `{"username":"kim@example.com","role":"student"}`, http.StatusOK},
		{"student without email", `{"username":"kim","role":"student"}`, http.StatusBadRequest},
		{"admin never issued", `{"username":"root","password":"root","role":"admin"}`, http.StatusUnauthorized},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := login(t, a, staff, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.code == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "access_token")
			}
		})
	}
}

func TestJWTMiddlewareSetsContext(t *testing.T) {
	a := NewAuthService("test-secret")
	tok, err := a.IssueJWT("kim@example.com", "student")
	require.NoError(t, err)

	var got rbac.Principal
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = rbac.PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rbac.Principal{Subject: "kim@example.com", Role: "student"}, got)
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("test-secret")
	other, err := NewAuthService("other-secret").IssueJWT("kim@example.com", "teacher")
	require.NoError(t, err)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Sub: "kim@example.com", Role: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	guest, err := a.IssueJWT("kim@example.com", "guest")
	require.NoError(t, err)

	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer " + other, "Bearer " + unsigned, "Bearer " + guest} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}
