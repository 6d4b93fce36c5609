package validate

import (
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// locationRe matches shelf-section-number, e.g. "1-A-12".
var locationRe = regexp.MustCompile(`^\d+-[A-Z]-\d+$`)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		return locationRe.MatchString(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// IsLocation reports whether s is a valid physical copy location.
func IsLocation(s string) bool {
	return locationRe.MatchString(s)
}
