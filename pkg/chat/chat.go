// Package chat defines the messaging front-end contract consumed by the bot
// core: inbound message and reaction events, and the narrow set of outbound
// operations (post, edit, delete, react, upload). Platform implementations
// live in subpackages; the core never imports them.
package chat

import "context"

// ChannelID identifies a chat channel (a Telegram chat).
type ChannelID int64

// MessageID identifies a message within a channel.
type MessageID int64

// UserID identifies a platform user.
type UserID int64

// Message is an inbound message event.
type Message struct {
	ID         MessageID
	ChannelID  ChannelID
	AuthorID   UserID
	AuthorName string
	Text       string
}

// Reaction is an inbound reaction event on a message.
type Reaction struct {
	ChannelID ChannelID
	MessageID MessageID
	UserID    UserID
	// Emoji is the reaction symbol as sent by the platform.
	Emoji string
}

// File references a file on disk to upload alongside a message.
type File struct {
	// Name is the file name shown in the channel.
	Name string
	// Path is the local path of the content.
	Path string
}

// Handler receives dispatched inbound events. Implementations must not block
// the dispatcher for long-running work.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandleReaction(ctx context.Context, r Reaction)
}

// Messenger is the outbound surface of the chat platform.
//
// Errors are classified with serrors kinds: short-lived network failures map
// to serrors.ErrTransient, platform throttling to serrors.ErrRateLimited, and
// other platform rejections to serrors.ErrUnavailable.
type Messenger interface {
	// Post sends a message to the channel and returns its ID.
	Post(ctx context.Context, ch ChannelID, text string) (MessageID, error)
	// Reply sends a message referencing replyTo and returns its ID.
	Reply(ctx context.Context, ch ChannelID, replyTo MessageID, text string) (MessageID, error)
	// Edit replaces the text of a previously posted message.
	Edit(ctx context.Context, ch ChannelID, id MessageID, text string) error
	// Delete removes a message.
	Delete(ctx context.Context, ch ChannelID, id MessageID) error
	// React sets the bot's reaction on a message. An empty emoji clears it.
	React(ctx context.Context, ch ChannelID, id MessageID, emoji string) error
	// Upload sends files to the channel. The caption and the replyTo
	// reference are attached to the first file.
	Upload(ctx context.Context, ch ChannelID, replyTo MessageID, caption string, files ...File) error
}

// Listener delivers inbound events to a Handler until the context is
// canceled.
type Listener interface {
	Listen(ctx context.Context, h Handler) error
}
