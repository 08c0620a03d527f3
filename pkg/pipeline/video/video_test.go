package video

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/serrors"
)

func TestMuxRejectsMissingImage(t *testing.T) {
	m := New(Options{ImagePath: filepath.Join(t.TempDir(), "missing.png")})

	err := m.Mux(context.Background(), "in.wav", "out.webm")
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func TestLastLine(t *testing.T) {
	require.Equal(t, "actual failure", lastLine("banner\nprogress\nactual failure\n"))
	require.Equal(t, "", lastLine(""))
	require.Equal(t, "only", lastLine("only"))
}
