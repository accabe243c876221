package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/pkg/auth"
)

func (h *Handler) ListBooks(c echo.Context) error {
	var filter model.BookFilter
	if err := c.Bind(&filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	books, err := h.svc.SearchBooks(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	bookID := c.Param("bookId")
	if bookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty bookId")
	}
	book, err := h.svc.GetBook(c.Request().Context(), bookID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) PopularBooks(c echo.Context) error {
	count, _ := strconv.Atoi(c.QueryParam("count"))
	books, err := h.svc.PopularBooks(c.Request().Context(), count)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) Recommendations(c echo.Context) error {
	principal, err := auth.PrincipalFrom(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	count, _ := strconv.Atoi(c.QueryParam("count"))
	books, err := h.svc.Recommend(c.Request().Context(), principal.ID, count)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	bookID := c.Param("bookId")
	if bookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty bookId")
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	book, err := h.svc.UpdateBook(c.Request().Context(), bookID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	bookID := c.Param("bookId")
	if bookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty bookId")
	}
	if err := h.svc.DeleteBook(c.Request().Context(), bookID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
