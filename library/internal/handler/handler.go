package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
	mw "github.com/bookhaven/library-service/pkg/middleware"
	"github.com/bookhaven/library-service/pkg/validate"
)

type Handler struct {
	svc LibraryService
	log *zap.Logger
}

func New(svc LibraryService, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", mw.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(mw.RequestLoggerConfig()),
		middleware.RequestID(),
		mw.NewRateLimiter(apiRPS),
		mw.ResolveSession(h.svc.RestoreSession),
	)

	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout, mw.RequireRoles())
	api.GET("/me", h.Me, mw.RequireRoles())
	api.PATCH("/me", h.UpdateMe, mw.RequireRoles())

	api.GET("/books", h.ListBooks, mw.RequireRoles())
	api.GET("/books/popular", h.PopularBooks, mw.RequireRoles())
	api.GET("/books/:bookId", h.GetBook, mw.RequireRoles())
	api.POST("/books", h.CreateBook, mw.RequireRoles(model.RoleStaff, model.RoleAdmin))
	api.PATCH("/books/:bookId", h.UpdateBook, mw.RequireRoles(model.RoleStaff, model.RoleAdmin))
	api.DELETE("/books/:bookId", h.DeleteBook, mw.RequireRoles(model.RoleStaff, model.RoleAdmin))

	api.GET("/recommendations", h.Recommendations, mw.RequireRoles())

	api.GET("/loans", h.MyLoans, mw.RequireRoles())
	api.POST("/loans", h.BorrowBook, mw.RequireRoles())
	api.POST("/loans/:loanId/return", h.ReturnBook, mw.RequireRoles())
	api.GET("/loans/all", h.AllLoans, mw.RequireRoles(model.RoleStaff, model.RoleAdmin))

	api.GET("/users", h.ListUsers, mw.RequireRoles(model.RoleAdmin))
	api.POST("/users/:userId/role", h.ChangeUserRole, mw.RequireRoles(model.RoleAdmin))

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps the domain error taxonomy onto statuses. Transport
// failures (timeouts, gateway down) stay distinguishable from domain
// outcomes so clients can choose retry over rule messaging.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrNotEligible):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrDuplicateEmail),
		errors.Is(err, errs.ErrAlreadyBorrowed),
		errors.Is(err, errs.ErrUnavailable),
		errors.Is(err, errs.ErrAlreadyReturned),
		errors.Is(err, errs.ErrBookOnLoan):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "gateway timeout")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
