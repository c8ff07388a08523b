// Package errors turns errors into short, low-cardinality labels for metric tags and log fields.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/target/jobmatch/internal/errors"
)

// Classify labels err. Pipeline failure kinds and application error codes map to fixed names;
// anything else is labelled with its innermost concrete type, e.g. "net_operror".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var exhausted *apperrors.ExhaustedRetriesError
	if goerrors.As(err, &exhausted) {
		return "fetch_exhausted"
	}
	if apperrors.IsTransient(err) {
		return "fetch_transient"
	}
	if reason, ok := apperrors.MatchReasonOf(err); ok {
		return "match_" + string(reason)
	}
	var cleanup *apperrors.CleanupError
	if goerrors.As(err, &cleanup) {
		return "cleanup"
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}

	return typeLabel(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeLabel(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
}
