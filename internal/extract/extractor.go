package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
	"github.com/JakeFAU/mixtape-crawler/internal/metrics"
)

var (
	// ErrNoMatch reports that a path selected nothing.
	ErrNoMatch = errors.New("path matched nothing")
	// ErrEmpty reports that a match held only whitespace.
	ErrEmpty = errors.New("matched text is empty")
	// ErrNoDigits reports numeric text without a single digit.
	ErrNoDigits = errors.New("text contains no digits")
	// ErrNotInteger reports a token that is not a plain integer.
	ErrNotInteger = errors.New("token is not an integer")
)

// Extractor pulls typed fields out of a document scope. Failures are logged
// and counted, then returned as sentinels.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor. A nil logger disables diagnostics.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Text extracts the first match of path that is not blank, trimmed. No match,
// or only blank ones, is Absent.
func (x *Extractor) Text(scope dom.Node, field, path string) Field[string] {
	raw, ok := scope.FirstNonBlank(path)
	if !ok {
		err := ErrNoMatch
		if scope.Count(path) > 0 {
			err = ErrEmpty
		}
		x.fail(field, path, err)
		return Absent[string]()
	}
	return Value(strings.TrimSpace(raw))
}

// TextOr is Text with a default in place of Absent.
func (x *Extractor) TextOr(scope dom.Node, field, path, def string) string {
	return x.Text(scope, field, path).OrElse(def)
}

// Int extracts the first match of path as an integer after stripping every
// non-digit. miss selects the sentinel used on failure.
func (x *Extractor) Int(scope dom.Node, field, path string, miss State) Field[int] {
	return x.IntFunc(scope, field, path, miss, nil)
}

// IntFunc is Int with a transform applied to the raw match before the digits
// are stripped.
func (x *Extractor) IntFunc(scope dom.Node, field, path string, miss State, pick func(string) string) Field[int] {
	raw, ok := scope.First(path)
	if !ok {
		x.fail(field, path, ErrNoMatch)
		return Miss[int](miss)
	}
	if pick != nil {
		raw = pick(raw)
	}
	return x.Number(field, raw, miss)
}

// IntToken parses the first space-separated token of the first match of path
// as a plain integer. Unlike Int nothing is stripped, so "4.5" is a miss
// rather than 45.
func (x *Extractor) IntToken(scope dom.Node, field, path string, miss State) Field[int] {
	raw, ok := scope.First(path)
	if !ok {
		x.fail(field, path, ErrNoMatch)
		return Miss[int](miss)
	}
	token := FirstToken(raw)
	n, err := strconv.Atoi(token)
	if err != nil {
		x.fail(field, path, fmt.Errorf("%w: %q", ErrNotInteger, token))
		return Miss[int](miss)
	}
	return Value(n)
}

// Digits extracts the digits of the first match of path as text. Text with no
// digits is Absent.
func (x *Extractor) Digits(scope dom.Node, field, path string) Field[string] {
	raw, ok := scope.First(path)
	if !ok {
		x.fail(field, path, ErrNoMatch)
		return Absent[string]()
	}
	digits := StripNonDigits(raw)
	if digits == "" {
		x.fail(field, path, ErrNoDigits)
		return Absent[string]()
	}
	return Value(digits)
}

// Number parses already-selected raw text.
func (x *Extractor) Number(field, raw string, miss State) Field[int] {
	n, err := ParseDigits(raw)
	if err != nil {
		x.fail(field, "", err)
		return Miss[int](miss)
	}
	return Value(n)
}

// Fail records a failure detected by a caller, such as a misaligned block.
func (x *Extractor) Fail(field string, err error) {
	x.fail(field, "", err)
}

func (x *Extractor) fail(field, path string, err error) {
	metrics.ObserveFieldFailure(field)
	fields := []zap.Field{zap.String("field", field), zap.Error(err)}
	if path != "" {
		fields = append(fields, zap.String("path", path))
	}
	x.logger.Debug("field extraction failed", fields...)
}

// StripNonDigits keeps only the ASCII digits of raw.
func StripNonDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseDigits strips non-digits and parses the rest as an int.
// "Listens: 12,345" yields 12345.
func ParseDigits(raw string) (int, error) {
	digits := StripNonDigits(raw)
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoDigits, raw)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", digits, err)
	}
	return n, nil
}

// FirstToken returns the first space-separated token of s.
func FirstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
