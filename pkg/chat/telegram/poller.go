package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paperboy/pkg/chat"
	"paperboy/pkg/logger"
)

// update is the subset of a Bot API update the poller dispatches.
type update struct {
	UpdateID int64 `json:"update_id"`

	Message *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			IsBot     bool   `json:"is_bot"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`

	MessageReaction *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		MessageID int64 `json:"message_id"`
		User      *struct {
			ID int64 `json:"id"`
		} `json:"user"`
		NewReaction []struct {
			Type  string `json:"type"`
			Emoji string `json:"emoji"`
		} `json:"new_reaction"`
	} `json:"message_reaction"`
}

// Listen long-polls getUpdates and dispatches events to the handler until the
// context is canceled. Events are dispatched sequentially; long-running work
// is the handler's responsibility to offload.
func (c *Client) Listen(ctx context.Context, h chat.Handler) error {
	var offset int64

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("listener stopped: %w", err)
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("listener stopped: %w", err)
			}
			logger.Warn(ctx, "could not poll updates", zap.Error(err))

			select {
			case <-ctx.Done():
				return fmt.Errorf("listener stopped: %w", ctx.Err())
			case <-time.After(3 * time.Second):
			}

			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			c.dispatch(ctx, h, u)
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	res, err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(c.pollTimeout / time.Second),
		"allowed_updates": []string{"message", "message_reaction"},
	})
	if err != nil {
		return nil, err
	}

	var updates []update
	if err := json.Unmarshal(res, &updates); err != nil {
		return nil, fmt.Errorf("could not decode updates: %w", err)
	}

	return updates, nil
}

func (c *Client) dispatch(ctx context.Context, h chat.Handler, u update) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		if u.Message.From.IsBot {
			return
		}
		name := u.Message.From.Username
		if name == "" {
			name = u.Message.From.FirstName
		}
		h.HandleMessage(ctx, chat.Message{
			ID:         chat.MessageID(u.Message.MessageID),
			ChannelID:  chat.ChannelID(u.Message.Chat.ID),
			AuthorID:   chat.UserID(u.Message.From.ID),
			AuthorName: name,
			Text:       u.Message.Text,
		})

	case u.MessageReaction != nil && u.MessageReaction.User != nil:
		for _, r := range u.MessageReaction.NewReaction {
			if r.Type != "emoji" {
				continue
			}
			h.HandleReaction(ctx, chat.Reaction{
				ChannelID: chat.ChannelID(u.MessageReaction.Chat.ID),
				MessageID: chat.MessageID(u.MessageReaction.MessageID),
				UserID:    chat.UserID(u.MessageReaction.User.ID),
				Emoji:     r.Emoji,
			})
		}
	}
}
