package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestCanManageDoctor(t *testing.T) {
	doc := uuid.New()
	cases := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"admin", Actor{Role: RoleAdmin}, true},
		{"own doctor", Actor{Role: RoleDoctor, DoctorID: doc}, true},
		{"own assistant", Actor{Role: RoleAssistant, DoctorID: doc}, true},
		{"other doctor", Actor{Role: RoleDoctor, DoctorID: uuid.New()}, false},
		{"assistant without doctor", Actor{Role: RoleAssistant}, false},
		{"patient", Actor{Role: RolePatient, PatientID: uuid.New()}, false},
	}
	for _, tc := range cases {
		if got := canManageDoctor(tc.actor, doc); got != tc.want {
			t.Errorf("%s: canManageDoctor = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestActorFromClaims(t *testing.T) {
	doc := uuid.New()
	a, err := actorFromClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		Role:             "doctor",
		DoctorID:         doc.String(),
	})
	if err != nil || a.DoctorID != doc || a.Role != RoleDoctor {
		t.Fatalf("actor = %+v, err = %v", a, err)
	}

	bad := []*Claims{
		{Role: "doctor"},
		{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: "nurse"},
		{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: "doctor", DoctorID: "x"},
		{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}, Role: "patient", PatientID: "x"},
	}
	for i, c := range bad {
		if _, err := actorFromClaims(c); err == nil {
			t.Errorf("claims #%d: expected error", i)
		}
	}
}

func TestJWTAuth_RejectsExpiredAndUnsignedTokens(t *testing.T) {
	e := echo.New()
	h := JWTAuth(testSecret)(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	run := func(tok string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		Role:             "admin",
	}).SignedString(testSecret)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
		Role:             "admin",
	}).SignedString(testSecret)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "admin",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{"expired": expired, "no exp": noExp, "alg none": none} {
		err := run(tok)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Errorf("%s: err = %v, want 401", name, err)
		}
	}

	if err := run(token(t, "u", RoleAdmin, uuid.Nil, uuid.Nil)); err != nil {
		t.Fatalf("valid token: %v", err)
	}
}
