package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "job not found", NotFound("job not found").Error())

	wrapped := Wrap(errors.New("connection reset"), ErrCodeInternal, "load job")
	assert.Equal(t, "load job: connection reset", wrapped.Error())
}

func TestAppError_UnwrapKeepsSentinel(t *testing.T) {
	sentinel := errors.New("progress regression")
	err := fmt.Errorf("apply checkpoint: %w", Wrapf(sentinel, ErrCodeConflict, "job %s", "j-1"))

	require.ErrorIs(t, err, sentinel)
	assert.True(t, IsConflict(err))
	assert.Equal(t, "job j-1: progress regression", errors.Unwrap(err).Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "unused"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "unused %d", 1))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"not found", NotFoundf("task %s", "t-1"), IsNotFound},
		{"conflict", Conflict("already claimed"), IsConflict},
		{"validation", Validation("bad criteria"), IsValidation},
		{"internal", Internal("boom"), IsInternal},
		{"foreign key", New(ErrCodeForeignKey, "owner missing"), IsForeignKey},
		{"timeout", New(ErrCodeTimeout, "slow"), IsTimeout},
		{"canceled", New(ErrCodeCanceled, "gone"), IsCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
			assert.True(t, tt.is(fmt.Errorf("outer: %w", tt.err)), "predicate must see through wrapping")
			assert.False(t, tt.is(errors.New(tt.name)))
		})
	}
}

func TestGetCodeAndField(t *testing.T) {
	err := ValidationField("resume", "a PDF upload is required")
	assert.Equal(t, ErrCodeValidation, GetCode(err))
	assert.Equal(t, "resume", GetField(err))

	plain := errors.New("plain")
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetField(plain))
}
