package validate

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/bookhaven/library-service/internal/errs"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		resp := errs.ValidationErrorResponse{Message: "validation failed"}
		resp.Errors.AdditionalProperties = err.Error()
		return echo.NewHTTPError(http.StatusBadRequest, resp)
	}
	return nil
}
