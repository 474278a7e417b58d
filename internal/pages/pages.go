// Package pages holds the staff console's page models. Each page keeps the
// last successful fetch, reloads after mutations and guards role-restricted
// actions; rendering is left to the caller.
package pages

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"courseattend/internal/apiclient"
)

var (
	ErrCancelled   = errors.New("pages: action cancelled")
	ErrForbidden   = errors.New("pages: action not allowed for this role")
	ErrNoSelection = errors.New("pages: no students selected")
)

// Confirmer answers a destructive-action prompt.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Answer is a confirmation already given by the user.
type Answer bool

func (a Answer) Confirm(context.Context, string) bool { return bool(a) }

// ValidationError is a form rejected before anything was sent.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// labels maps json field names to the words shown to staff.
var labels = map[string]string{
	"name":               "Name",
	"email":              "Email",
	"phone":              "Phone",
	"course":             "Course",
	"batch":              "Batch",
	"mockInterviewScore": "Score",
	"date":               "Date",
	"from":               "From date",
	"to":                 "To date",
}

// check validates form and turns the first failure into a ValidationError.
func check(form any) error {
	err := validatorInstance().Struct(form)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ValidationError{Message: "Invalid input."}
	}
	fe := fields[0]
	label := labels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	var msg string
	switch fe.Tag() {
	case "required":
		msg = label + " is required."
	case "email":
		msg = "Enter a valid email address."
	case "min", "max":
		if fe.Field() == "mockInterviewScore" {
			msg = ScoreRangeMessage
		} else {
			msg = fmt.Sprintf("%s is out of range.", label)
		}
	case "datetime":
		msg = label + " must be a date (YYYY-MM-DD)."
	default:
		msg = label + " is invalid."
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// ScoreRangeMessage is shown for a mock interview score outside 0–100.
const ScoreRangeMessage = "Score must be 0–100 or empty."

// Env carries what every page needs from the console.
type Env struct {
	Role apiclient.Role
	Now  func() time.Time
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Env) admin() bool   { return e.Role == apiclient.RoleAdmin }
func (e Env) trainer() bool { return e.Role == apiclient.RoleTrainer }

// fetchState tracks the generation of the latest fetch so that a slower,
// older response never overwrites a newer one.
type fetchState struct {
	gen     uint64
	loading bool
	err     string
}

func (f *fetchState) begin() uint64 {
	f.gen++
	f.loading = true
	return f.gen
}

// finish reports whether the response for gen is still current.
func (f *fetchState) finish(gen uint64, err error, fallback string) bool {
	if gen != f.gen {
		return false
	}
	f.loading = false
	if err != nil {
		f.err = apiclient.Message(err, fallback)
	} else {
		f.err = ""
	}
	return true
}
