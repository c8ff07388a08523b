package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/target/jobmatch/internal/errors"
)

type quotaError struct{}

func (*quotaError) Error() string { return "quota exceeded" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"transient fetch", apperrors.Transient(goerrors.New("502")), "fetch_transient"},
		{"exhausted wins over transient", &apperrors.ExhaustedRetriesError{Attempts: 3, Last: apperrors.Transient(goerrors.New("502"))}, "fetch_exhausted"},
		{"match reason", apperrors.NewMatchServiceError(apperrors.MatchReasonNoCredential, nil), "match_no_credential"},
		{"cleanup", &apperrors.CleanupError{Path: "uploads/a.pdf", Cause: goerrors.New("busy")}, "cleanup"},
		{"app code", fmt.Errorf("load: %w", apperrors.NotFound("job")), "not_found"},
		{"concrete type", fmt.Errorf("post: %w", &quotaError{}), "errors_quotaerror"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
