package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleAssistant Role = "assistant"
	RolePatient   Role = "patient"
)

func (r Role) valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleAssistant, RolePatient:
		return true
	}
	return false
}

// Claims is the bearer token payload. Doctors and assistants carry the doctor
// they work for; patients carry their own patient id.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	DoctorID  string `json:"doctor_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	Subject   string
	Role      Role
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}

const actorKey = "agenda_actor"

func actorFrom(c echo.Context) (Actor, bool) {
	a, ok := c.Get(actorKey).(Actor)
	return a, ok
}

// JWTAuth verifies an HS256 bearer token and stores the resulting Actor on the context.
func JWTAuth(secret []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(strings.TrimSpace(parts[1]), claims, keyFunc); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}
			actor, err := actorFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

func actorFromClaims(claims *Claims) (Actor, error) {
	if claims.Subject == "" {
		return Actor{}, errors.New("token has no subject")
	}
	a := Actor{Subject: claims.Subject, Role: Role(claims.Role)}
	if !a.Role.valid() {
		return Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	if claims.DoctorID != "" {
		id, err := uuid.Parse(claims.DoctorID)
		if err != nil {
			return Actor{}, errors.New("doctor_id claim must be a UUID")
		}
		a.DoctorID = id
	}
	if claims.PatientID != "" {
		id, err := uuid.Parse(claims.PatientID)
		if err != nil {
			return Actor{}, errors.New("patient_id claim must be a UUID")
		}
		a.PatientID = id
	}
	return a, nil
}

// RequireRole admits callers holding one of roles. Admins get no implicit pass.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := actorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, r := range roles {
				if a.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// canManageDoctor reports whether a may touch records of doctorID. Admins may
// touch any doctor; doctors and assistants only the doctor named in their token.
func canManageDoctor(a Actor, doctorID uuid.UUID) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleDoctor, RoleAssistant:
		return a.DoctorID != uuid.Nil && a.DoctorID == doctorID
	}
	return false
}

func forbidden(msg string) error {
	return echo.NewHTTPError(http.StatusForbidden, msg)
}
