package speech

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"paperboy/pkg/serrors"
)

// wavAudio is a decoded LINEAR16 WAV: the fmt chunk fields needed for
// concatenation plus the raw PCM samples.
type wavAudio struct {
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	data          []byte
}

// parseWAV decodes a RIFF/WAVE byte stream, keeping only the fmt and data
// chunks.
func parseWAV(b []byte) (*wavAudio, error) {
	const headerLen = 12
	if len(b) < headerLen || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, serrors.With(serrors.ErrBadRequest, "not a RIFF/WAVE stream")
	}

	audio := &wavAudio{}
	offset := headerLen
	for offset+8 <= len(b) {
		id := string(b[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))
		offset += 8
		if offset+size > len(b) {
			size = len(b) - offset
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, serrors.With(serrors.ErrBadRequest, "short fmt chunk")
			}
			audio.channels = binary.LittleEndian.Uint16(b[offset+2 : offset+4])
			audio.sampleRate = binary.LittleEndian.Uint32(b[offset+4 : offset+8])
			audio.bitsPerSample = binary.LittleEndian.Uint16(b[offset+14 : offset+16])
		case "data":
			audio.data = append(audio.data, b[offset:offset+size]...)
		}

		// chunks are word aligned
		if size%2 == 1 {
			size++
		}
		offset += size
	}

	if audio.sampleRate == 0 || len(audio.data) == 0 {
		return nil, serrors.With(serrors.ErrBadRequest, "missing fmt or data chunk")
	}

	return audio, nil
}

// append concatenates other's samples. Formats must match.
func (w *wavAudio) append(other *wavAudio) error {
	if w.channels != other.channels || w.sampleRate != other.sampleRate || w.bitsPerSample != other.bitsPerSample {
		return serrors.With(serrors.ErrBadRequest,
			"audio format mismatch: %d/%dHz/%dbit vs %d/%dHz/%dbit",
			w.channels, w.sampleRate, w.bitsPerSample,
			other.channels, other.sampleRate, other.bitsPerSample)
	}
	w.data = append(w.data, other.data...)

	return nil
}

// duration returns the playback length of the samples.
func (w *wavAudio) duration() time.Duration {
	byteRate := int64(w.sampleRate) * int64(w.channels) * int64(w.bitsPerSample) / 8
	if byteRate == 0 {
		return 0
	}

	return time.Duration(int64(len(w.data)) * int64(time.Second) / byteRate)
}

// writeTo serializes a canonical 44-byte-header WAV file.
func (w *wavAudio) writeTo(out io.Writer) error {
	byteRate := w.sampleRate * uint32(w.channels) * uint32(w.bitsPerSample) / 8
	blockAlign := w.channels * w.bitsPerSample / 8

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(w.data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], w.channels)
	binary.LittleEndian.PutUint32(header[24:28], w.sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], w.bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(w.data)))

	if _, err := out.Write(header[:]); err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}
	if _, err := out.Write(w.data); err != nil {
		return fmt.Errorf("could not write samples: %w", err)
	}

	return nil
}
