package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/lab-scheduler/internal/application"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 6, 16, 7, 0, 0, 0, time.UTC)

func testVerifier() *JWTVerifier {
	return NewJWTVerifier(testSecret, func() time.Time { return testNow })
}

func mustToken(t *testing.T, principal application.Principal) string {
	t.Helper()
	token, err := testVerifier().Sign(principal, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	return token
}

func TestJWTVerifier_Verify(t *testing.T) {
	t.Parallel()

	student := application.Principal{UserID: "s1", DisplayName: "Ana", Role: application.RoleStudent}

	t.Run("round trips signed principal", func(t *testing.T) {
		t.Parallel()
		got, err := testVerifier().Verify(context.Background(), mustToken(t, student))
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if got != student {
			t.Fatalf("unexpected principal %+v", got)
		}
	})

	t.Run("rejects bad tokens", func(t *testing.T) {
		t.Parallel()

		expired, _ := NewJWTVerifier(testSecret, func() time.Time { return testNow.Add(-2 * time.Hour) }).Sign(student, time.Hour)
		otherKey, _ := NewJWTVerifier("other", func() time.Time { return testNow }).Sign(student, time.Hour)
		badRole, _ := testVerifier().Sign(application.Principal{UserID: "x", Role: "janitor"}, time.Hour)
		noSubject, _ := testVerifier().Sign(application.Principal{Role: application.RoleAdmin}, time.Hour)
		none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "a"}}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)

		tests := map[string]string{
			"expired":     expired,
			"wrong key":   otherKey,
			"bad role":    badRole,
			"no subject":  noSubject,
			"alg none":    none,
			"not a token": "abc.def",
		}
		for name, token := range tests {
			if _, err := testVerifier().Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
			}
		}
	})
}

func TestRequireIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "missing credentials", expectedStatus: http.StatusUnauthorized},
		{name: "non bearer scheme", header: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "invalid bearer token", header: "Bearer malformed", expectedStatus: http.StatusUnauthorized},
		{name: "valid token", header: "bearer " + mustToken(t, application.Principal{UserID: "t1", Role: application.RoleTeacher}), expectedStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var captured application.Principal
			handler := RequireIdentity(testVerifier(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				if !ok {
					t.Fatal("expected principal in request context")
				}
				captured = p
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.expectedStatus {
				t.Fatalf("expected %d, got %d", tc.expectedStatus, recorder.Code)
			}
			if tc.expectedStatus == http.StatusOK && captured.UserID != "t1" {
				t.Fatalf("unexpected principal %+v", captured)
			}
			if tc.expectedStatus == http.StatusUnauthorized {
				var body errorResponse
				if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.Kind != string(application.KindUnauthorized) {
					t.Fatalf("unexpected error body %+v", body)
				}
			}
		})
	}
}

func TestRequestLogger_AssignsIncreasingIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected request logger in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/seats", nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected start and completion lines per request, got %d", len(lines))
	}
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if last["request_id"] != float64(2) || last["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected completion line %v", last)
	}
}
