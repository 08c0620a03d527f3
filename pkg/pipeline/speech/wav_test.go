package speech

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/serrors"
)

func sampleWAV(t *testing.T, sampleRate uint32, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := &wavAudio{channels: 1, sampleRate: sampleRate, bitsPerSample: 16, data: data}
	require.NoError(t, w.writeTo(&buf))

	return buf.Bytes()
}

func TestParseWAVRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	parsed, err := parseWAV(sampleWAV(t, 24000, data))
	require.NoError(t, err)

	require.Equal(t, uint16(1), parsed.channels)
	require.Equal(t, uint32(24000), parsed.sampleRate)
	require.Equal(t, uint16(16), parsed.bitsPerSample)
	require.Equal(t, data, parsed.data)
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	_, err := parseWAV([]byte("definitely not audio"))
	require.ErrorIs(t, err, serrors.ErrBadRequest)

	_, err = parseWAV(nil)
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func TestAppendConcatenatesSamples(t *testing.T) {
	a, err := parseWAV(sampleWAV(t, 24000, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	b, err := parseWAV(sampleWAV(t, 24000, []byte{5, 6}))
	require.NoError(t, err)

	require.NoError(t, a.append(b))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, a.data)
}

func TestAppendRejectsFormatMismatch(t *testing.T) {
	a, err := parseWAV(sampleWAV(t, 24000, []byte{1, 2}))
	require.NoError(t, err)
	b, err := parseWAV(sampleWAV(t, 44100, []byte{3, 4}))
	require.NoError(t, err)

	require.ErrorIs(t, a.append(b), serrors.ErrBadRequest)
}

func TestDuration(t *testing.T) {
	// 1 channel, 16 bit, 24kHz: 48000 bytes per second
	w := &wavAudio{channels: 1, sampleRate: 24000, bitsPerSample: 16, data: make([]byte, 48000)}
	require.Equal(t, time.Second, w.duration())

	w.data = make([]byte, 24000)
	require.Equal(t, 500*time.Millisecond, w.duration())
}
