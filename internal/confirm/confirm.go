// Package confirm tracks pending moderator confirmations for unknown domains.
// Each pending entry is keyed by its prompt message and resolved exactly once:
// by the author's accept or reject reaction, or by timeout.
package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paperboy/pkg/chat"
	"paperboy/pkg/logger"
	"paperboy/pkg/serrors"
)

// Reaction emojis the registry understands. Telegram offers both the check
// and thumb pairs depending on client, so both are accepted.
const (
	AcceptEmoji    = "✅"
	AcceptEmojiAlt = "👍"
	RejectEmoji    = "🚫"
	RejectEmojiAlt = "👎"
)

// DefaultTimeout is how long a confirmation stays open before it is treated
// as rejected.
const DefaultTimeout = 60 * time.Second

// Decision is the outcome of a pending confirmation.
type Decision int

const (
	// Accepted means the author reacted with an accept emoji in time.
	Accepted Decision = iota
	// Rejected means the author reacted with a reject emoji in time.
	Rejected
	// TimedOut means no author reaction arrived before the deadline.
	TimedOut
)

// String returns a human-readable decision name.
func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Pending describes one open confirmation.
type Pending struct {
	// ID is a unique token for logging and correlation.
	ID string
	// Domain is the unknown domain awaiting a verdict.
	Domain string
	// URL is the link that triggered the confirmation.
	URL string
	// ChannelID and MessageID locate the triggering message.
	ChannelID chat.ChannelID
	MessageID chat.MessageID
	// PromptID is the bot's prompt message carrying the reactions.
	PromptID chat.MessageID
	// AuthorID is the only user whose reactions resolve this entry.
	AuthorID chat.UserID
	// Deadline is when the entry times out.
	Deadline time.Time
}

// ResolveFunc receives each resolved confirmation exactly once.
type ResolveFunc func(ctx context.Context, p Pending, d Decision)

type entry struct {
	pending Pending
	timer   *time.Timer
}

// Registry holds open confirmations. At most one confirmation per domain may
// be in flight at a time; repeat links for the same domain are rejected until
// the first one resolves.
type Registry struct {
	mu       sync.Mutex
	timeout  time.Duration
	resolve  ResolveFunc
	byPrompt map[chat.MessageID]*entry
	byDomain map[string]chat.MessageID
}

// NewRegistry constructs a Registry resolving entries through fn. A zero
// timeout falls back to DefaultTimeout.
func NewRegistry(timeout time.Duration, fn ResolveFunc) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Registry{
		timeout:  timeout,
		resolve:  fn,
		byPrompt: make(map[chat.MessageID]*entry),
		byDomain: make(map[string]chat.MessageID),
	}
}

// Add opens a confirmation for p. The registry fills in ID and Deadline and
// returns the completed entry. When the domain already has a confirmation in
// flight, Add returns serrors.ErrAlreadyExists and opens nothing.
func (r *Registry) Add(ctx context.Context, p Pending) (Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if promptID, ok := r.byDomain[p.Domain]; ok {
		return Pending{}, serrors.With(serrors.ErrAlreadyExists,
			"confirmation for %s already in flight on prompt %d", p.Domain, promptID)
	}

	p.ID = uuid.NewString()
	p.Deadline = time.Now().Add(r.timeout)

	e := &entry{pending: p}
	// The timer outlives the triggering request, so detach its context from
	// the request's cancellation.
	timeoutCtx := context.WithoutCancel(ctx)
	e.timer = time.AfterFunc(r.timeout, func() {
		r.expire(timeoutCtx, p.PromptID)
	})

	r.byPrompt[p.PromptID] = e
	r.byDomain[p.Domain] = p.PromptID

	logger.Info(ctx, "confirmation opened",
		zap.String("confirmation_id", p.ID),
		zap.String("domain", p.Domain),
		zap.Int64("prompt_id", int64(p.PromptID)))

	return p, nil
}

// HandleReaction resolves the confirmation a reaction targets, if any.
// Reactions from anyone but the triggering author, unknown emojis, and
// reactions on messages that are not open prompts are all ignored. Returns
// true when the reaction resolved an entry.
func (r *Registry) HandleReaction(ctx context.Context, rc chat.Reaction) bool {
	var decision Decision
	switch rc.Emoji {
	case AcceptEmoji, AcceptEmojiAlt:
		decision = Accepted
	case RejectEmoji, RejectEmojiAlt:
		decision = Rejected
	default:
		return false
	}

	r.mu.Lock()
	e, ok := r.byPrompt[rc.MessageID]
	if !ok || e.pending.AuthorID != rc.UserID {
		r.mu.Unlock()

		return false
	}
	e.timer.Stop()
	r.remove(e.pending)
	r.mu.Unlock()

	r.resolve(ctx, e.pending, decision)

	return true
}

// InFlight reports whether a confirmation for domain is currently open.
func (r *Registry) InFlight(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byDomain[domain]

	return ok
}

// Len returns the number of open confirmations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byPrompt)
}

func (r *Registry) expire(ctx context.Context, promptID chat.MessageID) {
	r.mu.Lock()
	e, ok := r.byPrompt[promptID]
	if !ok {
		// Lost the race against a reaction.
		r.mu.Unlock()

		return
	}
	r.remove(e.pending)
	r.mu.Unlock()

	r.resolve(ctx, e.pending, TimedOut)
}

// remove drops an entry from both indexes. Callers must hold mu.
func (r *Registry) remove(p Pending) {
	delete(r.byPrompt, p.PromptID)
	delete(r.byDomain, p.Domain)
}
