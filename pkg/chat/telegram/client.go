// Package telegram implements the chat contract against the Telegram Bot API
// using plain HTTP calls. Only the handful of methods the bot needs are
// wrapped; responses are decoded ad hoc per call.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperboy/pkg/chat"
	"paperboy/pkg/serrors"
)

const defaultBaseURL = "https://api.telegram.org"

// Options configures the Telegram client.
type Options struct {
	// Token is the bot token issued by BotFather.
	Token string
	// BaseURL overrides the API endpoint, used by tests. Empty means the
	// public API.
	BaseURL string
	// PollTimeout is the long-poll duration for getUpdates.
	PollTimeout time.Duration
}

// Client talks to the Telegram Bot API and fulfills chat.Messenger and
// chat.Listener. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	pollTimeout time.Duration
}

// New constructs a Client using the provided http.Client and options.
func New(httpClient *http.Client, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     base,
		token:       opts.Token,
		pollTimeout: pollTimeout,
	}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// call performs one Bot API method with a JSON body and returns the raw
// result payload. Network failures map to ErrTransient, HTTP 429 and 5xx to
// ErrRateLimited/ErrTransient, other API rejections to ErrUnavailable.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		c.baseURL+"/bot"+c.token+"/"+method,
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrTransient, err, "could not send %s request", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return c.decode(method, resp)
}

func (c *Client) decode(method string, resp *http.Response) (json.RawMessage, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrTransient, err, "could not read %s response", method)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, serrors.With(serrors.ErrRateLimited, "%s rate limited: %s", method, strings.TrimSpace(string(b)))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, serrors.With(serrors.ErrTransient, "%s failed upstream: %s", method, strings.TrimSpace(string(b)))
	}

	var api apiResponse
	if err := json.Unmarshal(b, &api); err != nil {
		return nil, fmt.Errorf("could not decode %s response: %w", method, err)
	}
	if !api.OK {
		return nil, serrors.With(serrors.ErrUnavailable, "%s rejected (%d): %s", method, api.ErrorCode, api.Description)
	}

	return api.Result, nil
}

// sentMessage is the subset of the Message object the client reads back.
type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// Post sends a plain text message to the channel.
func (c *Client) Post(ctx context.Context, ch chat.ChannelID, text string) (chat.MessageID, error) {
	return c.send(ctx, ch, 0, text)
}

// Reply sends a message referencing replyTo.
func (c *Client) Reply(ctx context.Context, ch chat.ChannelID, replyTo chat.MessageID, text string) (chat.MessageID, error) { //nolint: lll
	return c.send(ctx, ch, replyTo, text)
}

func (c *Client) send(ctx context.Context, ch chat.ChannelID, replyTo chat.MessageID, text string) (chat.MessageID, error) { //nolint: lll
	params := map[string]any{
		"chat_id": int64(ch),
		"text":    text,
	}
	if replyTo != 0 {
		params["reply_parameters"] = map[string]any{"message_id": int64(replyTo)}
	}

	res, err := c.call(ctx, "sendMessage", params)
	if err != nil {
		return 0, err
	}

	var msg sentMessage
	if err := json.Unmarshal(res, &msg); err != nil {
		return 0, fmt.Errorf("could not decode sent message: %w", err)
	}

	return chat.MessageID(msg.MessageID), nil
}

// Edit replaces the text of a previously posted message.
func (c *Client) Edit(ctx context.Context, ch chat.ChannelID, id chat.MessageID, text string) error {
	_, err := c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    int64(ch),
		"message_id": int64(id),
		"text":       text,
	})

	return err
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, ch chat.ChannelID, id chat.MessageID) error {
	_, err := c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    int64(ch),
		"message_id": int64(id),
	})

	return err
}

// React sets the bot's reaction on a message; an empty emoji clears it.
func (c *Client) React(ctx context.Context, ch chat.ChannelID, id chat.MessageID, emoji string) error {
	reaction := []any{}
	if emoji != "" {
		reaction = append(reaction, map[string]any{"type": "emoji", "emoji": emoji})
	}

	_, err := c.call(ctx, "setMessageReaction", map[string]any{
		"chat_id":    int64(ch),
		"message_id": int64(id),
		"reaction":   reaction,
	})

	return err
}

// Upload sends the given files to the channel. Video containers go through
// sendVideo, everything else through sendDocument. The caption and replyTo
// reference are attached to the first file only.
func (c *Client) Upload(ctx context.Context,
	ch chat.ChannelID,
	replyTo chat.MessageID,
	caption string,
	files ...chat.File) error {
	for i, f := range files {
		method, field := "sendDocument", "document"
		switch strings.ToLower(filepath.Ext(f.Path)) {
		case ".webm", ".mp4":
			method, field = "sendVideo", "video"
		}

		fields := map[string]string{"chat_id": fmt.Sprintf("%d", int64(ch))}
		if i == 0 {
			if caption != "" {
				fields["caption"] = caption
			}
			if replyTo != 0 {
				params, err := json.Marshal(map[string]any{"message_id": int64(replyTo)})
				if err != nil {
					return fmt.Errorf("could not marshal reply parameters: %w", err)
				}
				fields["reply_parameters"] = string(params)
			}
		}

		if err := c.upload(ctx, method, field, f, fields); err != nil {
			return err
		}
	}

	return nil
}

// upload performs one multipart file upload call.
func (c *Client) upload(ctx context.Context, method, field string, f chat.File, fields map[string]string) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("could not open upload file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("could not write form field: %w", err)
		}
	}

	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("could not read upload file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("could not finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		c.baseURL+"/bot"+c.token+"/"+method,
		&buf)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return serrors.Wrap(serrors.ErrTransient, err, "could not send %s request", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	_, err = c.decode(method, resp)

	return err
}

// Ensure Client conforms to the chat interfaces at compile time.
var (
	_ chat.Messenger = (*Client)(nil)
	_ chat.Listener  = (*Client)(nil)
)
