package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"wa-bot/internal/amount"
	"wa-bot/internal/domain"
)

// Text accepts any non-blank input verbatim.
func Text(reject string) Validator {
	return func(_ context.Context, input string, _ domain.Record) (string, error) {
		if strings.TrimSpace(input) == "" {
			return "", Reject(reject)
		}
		return input, nil
	}
}

// Amount accepts a suffix-k number and stores its canonical decimal form,
// e.g. "1.5k" is stored as "1500".
func Amount(reject string) Validator {
	return func(_ context.Context, input string, _ domain.Record) (string, error) {
		d, err := amount.Parse(input)
		if err != nil {
			if errors.Is(err, amount.ErrInvalid) {
				return "", Reject(reject)
			}
			return "", err
		}
		return d.String(), nil
	}
}

// ExistenceChecker answers whether a record with the given name is already
// stored.
type ExistenceChecker interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// Unique runs next and then rejects values the checker already knows.
// {value} in reject is replaced by the candidate.
func Unique(checker ExistenceChecker, reject string, next Validator) Validator {
	return func(ctx context.Context, input string, rec domain.Record) (string, error) {
		value, err := next(ctx, input, rec)
		if err != nil {
			return "", err
		}
		exists, err := checker.ExistsByName(ctx, value)
		if err != nil {
			return "", fmt.Errorf("existence check: %w", err)
		}
		if exists {
			return "", Reject(strings.ReplaceAll(reject, "{value}", value))
		}
		return value, nil
	}
}

// OneOf accepts input that, once capitalized, is one of the newline separated
// options stored in the record under listField.
func OneOf(listField, reject string) Validator {
	return func(_ context.Context, input string, rec domain.Record) (string, error) {
		candidate := Capitalize(input)
		options := strings.Split(rec.Value(listField), "\n")
		if candidate == "" || !slices.Contains(options, candidate) {
			return "", Reject(reject)
		}
		return candidate, nil
	}
}

// Capitalize upper-cases the first letter and trims the rest, leaving the
// remaining letters as typed.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
