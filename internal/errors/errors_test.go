package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeParseFailed, "cannot read file", nil)
	assert.Equal(t, "[ERR_501_PARSE_FAILED] cannot read file", err.Error())
	assert.Equal(t, CategoryStage, err.Category)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeStoreTx, CategoryStore},
		{ErrCodeStoreClosed, CategoryStore},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeMissingPath, CategoryValidation},
		{ErrCodeParseFailed, CategoryStage},
		{ErrCodeEmbedFailed, CategoryStage},
		{"garbage", CategoryStore},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, categoryFromCode(tt.code))
		})
	}
}

func TestUnwrapAndIs(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := StageError(ErrCodeSummarizeFailed, "summarize", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, &Error{Code: ErrCodeSummarizeFailed}))
	assert.False(t, stderrors.Is(err, &Error{Code: ErrCodeParseFailed}))
}

func TestCategoryPredicates(t *testing.T) {
	stage := fmt.Errorf("wrapped: %w", StageError(ErrCodeEmbedFailed, "embed", stderrors.New("boom")))
	assert.True(t, IsStage(stage))
	assert.False(t, IsValidation(stage))

	assert.True(t, IsValidation(ValidationError("path is required")))
	assert.True(t, IsStore(StoreError("commit failed", nil)))
	assert.False(t, IsStage(stderrors.New("plain")))
}

func TestWrapNil(t *testing.T) {
	require.Nil(t, Wrap(ErrCodeStoreTx, nil))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	result, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", stderrors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return stderrors.New("always")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		return stderrors.New("never reached after cancel")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
