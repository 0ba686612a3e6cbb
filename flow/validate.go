package flow

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator checks a text reply.
// On success it returns the value to store, on failure an error whose message is shown
// to the user (see Reject).
type Validator interface {
	Validate(ctx context.Context, text string) (any, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, text string) (any, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, text string) (any, error) {
	return f(ctx, text)
}

// NumericValidator accepts numbers within optional bounds and stores them as float64.
type NumericValidator struct {
	Min          *float64
	Max          *float64
	ExclusiveMin bool   // Reject values equal to Min
	ExclusiveMax bool   // Reject values equal to Max
	Message      string // Shown for non numeric input
}

// NumericOption configures a NumericValidator.
type NumericOption func(*NumericValidator)

// Min sets an inclusive lower bound.
func Min(v float64) NumericOption {
	return func(n *NumericValidator) { n.Min, n.ExclusiveMin = &v, false }
}

// Max sets an inclusive upper bound.
func Max(v float64) NumericOption {
	return func(n *NumericValidator) { n.Max, n.ExclusiveMax = &v, false }
}

// Above sets an exclusive lower bound.
func Above(v float64) NumericOption {
	return func(n *NumericValidator) { n.Min, n.ExclusiveMin = &v, true }
}

// Below sets an exclusive upper bound.
func Below(v float64) NumericOption {
	return func(n *NumericValidator) { n.Max, n.ExclusiveMax = &v, true }
}

// Numeric builds a numeric range validator.
func Numeric(opts ...NumericOption) *NumericValidator {
	n := &NumericValidator{Message: "❌ Please enter a valid number"}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Validate implements Validator.
func (n *NumericValidator) Validate(_ context.Context, text string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, Reject("%s", n.Message)
	}
	if n.Min != nil {
		if n.ExclusiveMin && v <= *n.Min {
			return nil, Reject("❌ Value must be greater than %s", formatNumber(*n.Min))
		}
		if !n.ExclusiveMin && v < *n.Min {
			return nil, Reject("❌ Value must be at least %s", formatNumber(*n.Min))
		}
	}
	if n.Max != nil {
		if n.ExclusiveMax && v >= *n.Max {
			return nil, Reject("❌ Value must be less than %s", formatNumber(*n.Max))
		}
		if !n.ExclusiveMax && v > *n.Max {
			return nil, Reject("❌ Value must be at most %s", formatNumber(*n.Max))
		}
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TextLengthValidator accepts text whose rune count is within bounds. Zero means unbounded.
type TextLengthValidator struct {
	MinLen int
	MaxLen int
}

// TextLength builds a text length validator.
func TextLength(minLen, maxLen int) *TextLengthValidator {
	return &TextLengthValidator{MinLen: minLen, MaxLen: maxLen}
}

// Validate implements Validator.
func (t *TextLengthValidator) Validate(_ context.Context, text string) (any, error) {
	n := utf8.RuneCountInString(text)
	if t.MinLen > 0 && n < t.MinLen {
		return nil, Reject("❌ Text must be at least %d characters", t.MinLen)
	}
	if t.MaxLen > 0 && n > t.MaxLen {
		return nil, Reject("❌ Text must be at most %d characters", t.MaxLen)
	}
	return text, nil
}

// RegexValidator accepts text matching a pattern at its start.
type RegexValidator struct {
	re      *regexp.Regexp
	message string
}

// Regex compiles pattern into a validator. message defaults to "❌ Invalid format".
func Regex(pattern, message string) (*RegexValidator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	if message == "" {
		message = "❌ Invalid format"
	}
	return &RegexValidator{re: re, message: message}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern, message string) *RegexValidator {
	v, err := Regex(pattern, message)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate implements Validator.
func (r *RegexValidator) Validate(_ context.Context, text string) (any, error) {
	loc := r.re.FindStringIndex(text)
	if loc == nil || loc[0] != 0 {
		return nil, Reject("%s", r.message)
	}
	return text, nil
}

// Custom wraps a predicate into a validator. Accepted text is stored unchanged.
func Custom(accept func(text string) bool, message string) Validator {
	return ValidatorFunc(func(_ context.Context, text string) (any, error) {
		if !accept(text) {
			return nil, Reject("%s", message)
		}
		return text, nil
	})
}
