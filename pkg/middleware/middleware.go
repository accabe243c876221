package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/pkg/auth"
	"github.com/bookhaven/library-service/pkg/logger"
)

// SessionResolver turns a bearer token into a resolved session.
// Implemented by the identity service's RestoreSession.
type SessionResolver func(ctx context.Context, token string) (model.Session, error)

// ResolveSession attaches a session to every request. Requests without
// a bearer token resolve anonymous; resolver failures (gateway down,
// timeout) leave the session loading so the gate answers Pending
// instead of guessing either way.
func ResolveSession(resolve SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			session := model.AnonymousSession()

			authorization := req.Header.Get(auth.AuthorizationHeader)
			if strings.HasPrefix(authorization, auth.Bearer) {
				token := strings.TrimPrefix(authorization, auth.Bearer)
				s, err := resolve(req.Context(), token)
				if err != nil {
					session = model.Session{State: model.SessionLoading}
				} else {
					session = s
				}
			}

			c.SetRequest(req.WithContext(auth.SetSession(req.Context(), session)))
			return next(c)
		}
	}
}

// RequireRoles maps gate decisions onto HTTP statuses. An empty role
// list admits any authenticated principal.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch auth.Authorize(auth.SessionFrom(c.Request().Context()), roles...) {
			case auth.Allow:
				return next(c)
			case auth.Pending:
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session not resolved")
			case auth.DenyUnauthenticated:
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			default:
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
		}
	}
}

func NewRateLimiter(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func RequestLoggerConfig() middleware.RequestLoggerConfig {
	cfg := logger.Log{LogLevel: zapcore.DebugLevel, Sink: ""}
	log := logger.NewLogger(cfg, "echo")
	c := middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
	return c
}
