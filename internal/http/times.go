package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/scheduler"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// timeFields collects the per-field errors of request times.
type timeFields struct {
	loc    *time.Location
	errors map[string]string
}

func newTimeFields(loc *time.Location) *timeFields {
	if loc == nil {
		loc = time.UTC
	}
	return &timeFields{loc: loc}
}

// parse reads value as RFC3339 or as H:MM/HH:MM on date in the lab's
// location. An empty value stays zero for the service to report.
func (t *timeFields) parse(field, date, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	hour, minute, ok := parseClock(value)
	if !ok {
		t.add(field, "must be RFC3339 or HH:MM")
		return time.Time{}
	}
	day, err := scheduler.ParseDate(strings.TrimSpace(date))
	if err != nil {
		// The date field itself is reported by the service.
		return time.Time{}
	}
	return day.At(hour, minute, t.loc)
}

func (t *timeFields) add(field, message string) {
	if t.errors == nil {
		t.errors = make(map[string]string)
	}
	t.errors[field] = message
}

func (t *timeFields) err() error {
	if len(t.errors) == 0 {
		return nil
	}
	return &application.ValidationError{
		Reason:      application.ReasonInvalidInput,
		Message:     "invalid time values",
		FieldErrors: t.errors,
	}
}

func parseClock(value string) (int, int, bool) {
	hourText, minuteText, found := strings.Cut(value, ":")
	if !found || len(minuteText) != 2 || len(hourText) == 0 || len(hourText) > 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func queryDate(r *http.Request) (scheduler.Date, error) {
	value := strings.TrimSpace(r.URL.Query().Get("date"))
	if value == "" {
		return scheduler.Date{}, errMissingDate
	}
	date, err := scheduler.ParseDate(value)
	if err != nil {
		return scheduler.Date{}, fmt.Errorf("%w: %v", errMissingDate, err)
	}
	return date, nil
}
