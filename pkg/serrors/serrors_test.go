package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/serrors"
)

type customError struct{ msg string }

func (e customError) Error() string { return e.msg }

func TestDefaultKindsDistinct(t *testing.T) {
	kinds := []serrors.Kind{
		serrors.ErrNotFound,
		serrors.ErrAlreadyExists,
		serrors.ErrInvalidDomain,
		serrors.ErrStorage,
		serrors.ErrTransient,
		serrors.ErrBadRequest,
		serrors.ErrInternal,
		serrors.ErrTimeout,
		serrors.ErrUnavailable,
		serrors.ErrRateLimited,
	}
	seen := map[serrors.Kind]bool{}
	for i, k := range kinds {
		require.NotNil(t, k, "kind at index %d is nil", i)
		require.False(t, seen[k], "kind at index %d is duplicate: %v", i, k)
		seen[k] = true
	}

	require.NotEqual(t, serrors.ErrNotFound, serrors.ErrStorage, "NotFound should not equal Storage")
}

func TestErrorFormatting(t *testing.T) {
	base := errors.New("disk full")

	e1 := serrors.With(serrors.ErrNotFound, "policy for %s not found", "example.com")
	require.Equal(t, "policy for example.com not found", e1.Error(), "With() Error() mismatch")

	e2 := serrors.Wrap(serrors.ErrStorage, base, "storing policy")
	require.Equal(t, "storing policy: disk full", e2.Error(), "Wrap() Error() mismatch")

	e3 := serrors.KindOnly(serrors.ErrNotFound)
	require.Equal(t, "NOT_FOUND", e3.Error(), "KindOnly Error() mismatch")
}

func TestIsMatchesKindAndWrapped(t *testing.T) {
	base := customError{"root cause"}
	e := serrors.Wrap(serrors.ErrStorage, base, "reading")

	require.ErrorIs(t, e, serrors.ErrStorage)
	require.ErrorIs(t, e, base)
	require.NotErrorIs(t, e, serrors.ErrTransient, "errors.Is should not match a different kind")
}

func TestAsMatchesKindAndWrapped(t *testing.T) {
	base := customError{"root cause"}
	e := serrors.Wrap(serrors.ErrTransient, base, "uploading")

	var ce customError
	require.ErrorAs(t, e, &ce)
	require.Equal(t, base.msg, ce.msg)

	var k serrors.Kind
	require.ErrorAs(t, e, &k)
	require.Equal(t, serrors.ErrTransient, k)
}

func TestUnwrapTraversesCause(t *testing.T) {
	base := errors.New("timeout")
	e := serrors.Wrap(serrors.ErrTimeout, base, "")

	require.Equal(t, base, errors.Unwrap(e))

	require.Equal(t, serrors.ErrTimeout, e.Kind())
	require.Equal(t, base, e.Cause())
}
