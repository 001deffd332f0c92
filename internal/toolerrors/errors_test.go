package toolerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOMEError_IsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := New(KindCircuitOpen, "circuit open for search")
	require.True(t, errors.Is(err, New(KindCircuitOpen, "")))
	require.False(t, errors.Is(err, New(KindToolTimeout, "")))
}

func TestWrap_ChainsCauseAndUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	wrapped := Wrap(KindToolExecution, "tool failed", cause)
	require.Equal(t, "tool failed: boom", wrapped.Error())
	require.Equal(t, cause.Error(), wrapped.Unwrap().Error())
}

func TestFromError_PreservesExistingKind(t *testing.T) {
	t.Parallel()

	original := New(KindToolTimeout, "timed out")
	var asErr error = original
	converted := FromError(asErr)
	require.Equal(t, KindToolTimeout, converted.Kind)
}

func TestFromError_WrapsPlainError(t *testing.T) {
	t.Parallel()

	converted := FromError(errors.New("plain"))
	require.Equal(t, KindToolExecution, converted.Kind)
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	require.False(t, Retryable(New(KindCircuitOpen, "")))
	require.True(t, Retryable(New(KindToolTimeout, "")))
	require.True(t, Retryable(New(KindToolExecution, "")))
	require.False(t, Retryable(errors.New("not an ome error")))
}
