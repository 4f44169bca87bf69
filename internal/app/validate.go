package app

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var clockTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return clockTimePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validateRequest runs the struct tags and folds any failure into
// ErrValidation with one "field: rule" entry per problem.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		problem := strings.ToLower(fe.Field()) + ": " + fe.Tag()
		if fe.Param() != "" {
			problem += "=" + fe.Param()
		}
		problems = append(problems, problem)
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	return nil
}

func validateThresholds(minimum, maximum int) error {
	if maximum > 0 && minimum > maximum {
		return fmt.Errorf("%w: minimum %d is above maximum %d", ErrValidation, minimum, maximum)
	}
	return nil
}

// ValidClockTime reports whether value is a 24-hour HH:MM time.
func ValidClockTime(value string) bool {
	return clockTimePattern.MatchString(value)
}
