package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/lab-scheduler/internal/scheduler"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and returns the failures keyed by the
// json field name. The result is never nil.
func validateStruct(input any) *ValidationError {
	vErr := &ValidationError{Reason: ReasonInvalidInput}
	err := validate.Struct(input)
	if err == nil {
		return vErr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("input", err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), describeFieldError(fe))
	}
	return vErr
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "alpha":
		return fmt.Sprintf("%s must be a letter", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// finish converts a collected ValidationError into the returned error.
func (v *ValidationError) finish() error {
	if !v.HasErrors() {
		return nil
	}
	if v.Message == "" {
		v.Message = "validation failed"
	}
	return v
}

func parseDateField(vErr *ValidationError, field, value string) scheduler.Date {
	if strings.TrimSpace(value) == "" {
		if _, exists := vErr.FieldErrors[field]; !exists {
			vErr.add(field, field+" is required")
		}
		return scheduler.Date{}
	}
	date, err := scheduler.ParseDate(value)
	if err != nil {
		vErr.add(field, field+" must use YYYY-MM-DD")
		return scheduler.Date{}
	}
	return date
}

// validateWindow requires start < end, both on date as observed in loc. End
// may also be the midnight that closes date. A zero date skips the calendar
// check since parseDateField already reported it.
func validateWindow(vErr *ValidationError, date scheduler.Date, start, end time.Time, loc *time.Location) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("end", "end must be after start")
	}
	if date.IsZero() {
		return
	}
	if loc == nil {
		loc = time.UTC
	}
	if !start.IsZero() && scheduler.DateOf(start, loc) != date {
		vErr.add("start", fmt.Sprintf("start must fall on %s", date))
	}
	if !end.IsZero() && scheduler.DateOf(end, loc) != date && !end.Equal(date.AddDays(1).At(0, 0, loc)) {
		vErr.add("end", fmt.Sprintf("end must fall on %s", date))
	}
}
