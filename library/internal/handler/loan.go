package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/pkg/auth"
)

func (h *Handler) BorrowBook(c echo.Context) error {
	principal, err := auth.PrincipalFrom(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.BorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	loan, err := h.svc.BorrowBook(c.Request().Context(), principal.ID, req.BookID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	principal, err := auth.PrincipalFrom(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loanID := c.Param("loanId")
	if loanID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty loanId")
	}
	loan, err := h.svc.ReturnBook(c.Request().Context(), principal, loanID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) MyLoans(c echo.Context) error {
	principal, err := auth.PrincipalFrom(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	loans, err := h.svc.ListMemberLoans(c.Request().Context(), principal.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) AllLoans(c echo.Context) error {
	loans, err := h.svc.ListLoans(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}
