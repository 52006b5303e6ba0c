// Package validation checks API and profile input before it reaches the enumerator.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

const dateLayout = "2006-01-02"

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("market", validateMarket)
	_ = validate.RegisterValidation("granularity", validateGranularity)
	_ = validate.RegisterValidation("interval", validateInterval)
	_ = validate.RegisterValidation("isodate", validateISODate)
}

// Validate checks s against its struct tags. Failures wrap ErrInvalidSelection
// and name every offending field.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", errpkg.ErrInvalidSelection, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", errpkg.ErrInvalidSelection, strings.Join(msgs, "; "))
}

// ValidateSelection is Validate for a bare selection.
func ValidateSelection(sel domain.Selection) error {
	return Validate(sel)
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "market", "granularity", "interval":
		return fmt.Sprintf("%s: unknown %s %q", field, fe.Tag(), fe.Value())
	case "isodate":
		return fmt.Sprintf("%s: %q is not a YYYY-MM-DD date", field, fe.Value())
	case "min", "max":
		return fmt.Sprintf("%s: %v is out of range (%s %s)", field, fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func validateMarket(fl validator.FieldLevel) bool {
	return domain.Market(fl.Field().String()).Valid()
}

func validateGranularity(fl validator.FieldLevel) bool {
	return domain.Granularity(fl.Field().String()).Valid()
}

func validateInterval(fl validator.FieldLevel) bool {
	return catalog.IsInterval(strings.TrimSpace(fl.Field().String()))
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(dateLayout, fl.Field().String())
	return err == nil
}
