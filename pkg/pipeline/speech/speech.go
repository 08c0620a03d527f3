// Package speech narrates text through the Google Cloud text-to-speech REST
// API. Chunks are synthesized one at a time and concatenated into a single
// WAV file.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"paperboy/pkg/serrors"
)

const synthesizeEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// Options configures the speech client.
type Options struct {
	// APIKey is the Google Cloud API key.
	APIKey string
	// LanguageCode selects the voice language, e.g. "en-US".
	LanguageCode string
	// Voice is the voice name, e.g. "en-US-Wavenet-I".
	Voice string
}

// Client synthesizes narration audio. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	opts       Options
}

// New constructs a Client using the provided http.Client and options.
func New(httpClient *http.Client, opts Options) *Client {
	if opts.LanguageCode == "" {
		opts.LanguageCode = "en-US"
	}
	if opts.Voice == "" {
		opts.Voice = "en-US-Wavenet-I"
	}

	return &Client{httpClient: httpClient, opts: opts}
}

// Synthesize narrates the chunks in order and writes one WAV file to outPath.
// It returns the total narration duration.
func (c *Client) Synthesize(ctx context.Context, chunks []string, outPath string) (time.Duration, error) {
	var audio *wavAudio
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		pcm, err := c.synthesizeChunk(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("could not synthesize chunk %d: %w", i, err)
		}

		if audio == nil {
			audio = pcm
		} else {
			if err := audio.append(pcm); err != nil {
				return 0, fmt.Errorf("could not concatenate chunk %d: %w", i, err)
			}
		}
	}
	if audio == nil {
		return 0, serrors.With(serrors.ErrBadRequest, "no text to narrate")
	}

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("could not create audio file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := audio.writeTo(f); err != nil {
		return 0, fmt.Errorf("could not write audio file: %w", err)
	}

	return audio.duration(), nil
}

// synthesizeChunk performs one REST call and decodes the returned WAV.
func (c *Client) synthesizeChunk(ctx context.Context, text string) (*wavAudio, error) {
	body, err := json.Marshal(map[string]any{
		"input": map[string]string{"text": text},
		"voice": map[string]string{
			"languageCode": c.opts.LanguageCode,
			"name":         c.opts.Voice,
		},
		"audioConfig": map[string]string{"audioEncoding": "LINEAR16"},
	})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		synthesizeEndpoint+"?key="+c.opts.APIKey,
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrUnavailable, err, "could not read response")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, serrors.With(serrors.ErrRateLimited, "synthesis rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serrors.With(serrors.ErrUnavailable, "synthesis failed: %s", strings.TrimSpace(string(b)))
	}

	var synthResp struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(b, &synthResp); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}

	wav, err := base64.StdEncoding.DecodeString(synthResp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("could not decode audio content: %w", err)
	}

	return parseWAV(wav)
}
