package auth

import (
	"context"
	"os"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/bookhaven/library-service/internal/model"
)

const (
	AuthorizationHeader = "Authorization"
	Bearer              = "Bearer "
)

// JWTKey signs session tokens. Overridable for deployments; the
// default only exists so local compose setups work out of the box.
var JWTKey = []byte(envOr("JWT_SECRET", "bookhaven-dev-secret"))

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type Claims struct {
	Profile struct {
		UserID string     `json:"userId"`
		Role   model.Role `json:"role"`
	} `json:"profile"`
	Email string `json:"email"`
	// Generation is the user's session generation at issue time. A
	// logout bumps the stored generation, so older tokens resolve
	// anonymous on restore.
	Generation int64 `json:"generation"`
	jwt.RegisteredClaims
}

func ParseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return JWTKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type contextKey int

const sessionKey contextKey = iota + 1

func SetSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session resolved for this request. A missing
// value means resolution never ran, which callers must treat as a
// still-loading session rather than anonymous.
func SessionFrom(ctx context.Context) model.Session {
	if s, ok := ctx.Value(sessionKey).(model.Session); ok {
		return s
	}
	return model.Session{State: model.SessionLoading}
}

func PrincipalFrom(ctx context.Context) (model.User, error) {
	s := SessionFrom(ctx)
	if s.State != model.SessionAuthenticated || s.User == nil {
		return model.User{}, errors.New("no authenticated principal")
	}
	return *s.User, nil
}
