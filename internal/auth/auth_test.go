package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer(testSigningKey, time.Hour)
	token, exp, err := iss.Issue("profile-1", RolePatient, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Error("expected expiry in the future")
	}
	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "profile-1" || claims.Role != RolePatient || claims.SessionID != "sess-1" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParse_Rejects(t *testing.T) {
	iss := NewIssuer(testSigningKey, time.Hour)
	good, _, _ := iss.Issue("p", RolePatient, "s")

	expired := NewIssuer(testSigningKey, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue("p", RolePatient, "s")

	other, _, _ := NewIssuer([]byte("another-key"), time.Hour).Issue("p", RolePatient, "s")
	badRole, _, _ := iss.Issue("p", "admin", "s")
	noSession, _, _ := iss.Issue("p", RolePatient, "")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RolePatient, SessionID: "s"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"tampered":     good + "x",
		"expired":      old,
		"other key":    other,
		"unknown role": badRole,
		"no session":   noSession,
		"alg none":     unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := iss.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	iss := NewIssuer(testSigningKey, time.Hour)
	token, _, _ := iss.Issue("profile-1", RoleClinician, "sess-1")

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid bearer", "Bearer " + token, "", http.StatusOK},
		{"query token", "", "?access_token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized},
		{"bad token", "Bearer abc", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen *Claims
			h := Middleware(iss)(func(c echo.Context) error {
				seen = ClaimsFromContext(c.Request().Context())
				return okHandler(c)
			})
			err := h(c)

			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if seen == nil || seen.Subject != "profile-1" {
					t.Errorf("expected claims on context, got %+v", seen)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, httpErr.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"matching role", &Claims{Role: RoleClinician}, http.StatusOK},
		{"other role", &Claims{Role: RolePatient}, http.StatusForbidden},
		{"no claims", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(RoleClinician)(okHandler)(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func TestPasscode(t *testing.T) {
	hash, err := HashPasscode("1234")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPasscode(hash, "1234"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPasscode(hash, "0000"); !errors.Is(err, ErrBadPasscode) {
		t.Errorf("expected ErrBadPasscode, got %v", err)
	}
	if err := CheckPasscode("", "1234"); !errors.Is(err, ErrBadPasscode) {
		t.Errorf("expected empty hash to reject, got %v", err)
	}
}
