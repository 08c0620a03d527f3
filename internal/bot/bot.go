// Package bot is the chat front end: it filters events to the watched
// channels, executes moderator commands, and hands everything else to the
// link reader. Command replies clean themselves up after a short lifetime.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperboy/internal/reader"
	"paperboy/pkg/chat"
	"paperboy/pkg/domain"
	"paperboy/pkg/logger"
	"paperboy/pkg/metrics"
	"paperboy/pkg/serrors"
	"paperboy/pkg/storage"
)

const (
	// DefaultCommandPrefix marks moderator commands.
	DefaultCommandPrefix = "$"
	// DefaultMessageLifetime is how long command chatter stays in the channel.
	DefaultMessageLifetime = 30 * time.Second
	// listPageSize bounds one page of the policy table.
	listPageSize = 20
	// maxPingTrials caps the latency trials a single ping may request.
	maxPingTrials = 20
)

// Options configure the bot front end.
type Options struct {
	// Channels is the allow-list of watched channels. Empty watches all
	// channels the bot can see.
	Channels []chat.ChannelID
	// CommandPrefix marks moderator commands; defaults to "$".
	CommandPrefix string
	// MessageLifetime is how long command replies (and the commands
	// themselves) stay before self-deleting.
	MessageLifetime time.Duration
}

// Bot implements chat.Handler.
type Bot struct {
	messenger chat.Messenger
	reader    *reader.Reader
	store     storage.PolicyStorage
	metrics   *metrics.Metrics
	opts      Options
	channels  map[chat.ChannelID]struct{}
	started   time.Time
}

// New constructs the bot front end.
func New(messenger chat.Messenger,
	rd *reader.Reader,
	store storage.PolicyStorage,
	m *metrics.Metrics,
	opts Options) *Bot {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = DefaultCommandPrefix
	}
	if opts.MessageLifetime <= 0 {
		opts.MessageLifetime = DefaultMessageLifetime
	}

	channels := make(map[chat.ChannelID]struct{}, len(opts.Channels))
	for _, ch := range opts.Channels {
		channels[ch] = struct{}{}
	}

	return &Bot{
		messenger: messenger,
		reader:    rd,
		store:     store,
		metrics:   m,
		opts:      opts,
		channels:  channels,
		started:   time.Now(),
	}
}

// HandleMessage implements chat.Handler.
func (b *Bot) HandleMessage(ctx context.Context, msg chat.Message) {
	if !b.watched(msg.ChannelID) {
		return
	}

	if strings.HasPrefix(msg.Text, b.opts.CommandPrefix) {
		b.handleCommand(ctx, msg)

		return
	}

	b.reader.HandleMessage(ctx, msg)
}

// HandleReaction implements chat.Handler.
func (b *Bot) HandleReaction(ctx context.Context, r chat.Reaction) {
	if !b.watched(r.ChannelID) {
		return
	}

	b.reader.HandleReaction(ctx, r)
}

func (b *Bot) watched(ch chat.ChannelID) bool {
	if len(b.channels) == 0 {
		return true
	}
	_, ok := b.channels[ch]

	return ok
}

func (b *Bot) handleCommand(ctx context.Context, msg chat.Message) {
	fields := strings.Fields(strings.TrimPrefix(msg.Text, b.opts.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	ctx = logger.WithFields(ctx,
		zap.String("command", command),
		zap.Int64("author_id", int64(msg.AuthorID)))
	logger.Info(ctx, "executing command", zap.Strings("args", args))
	b.metrics.Commands.WithLabelValues(command).Inc()

	var (
		text string
		err  error
	)
	switch command {
	case "ping":
		text, err = b.ping(ctx, args)
	case "list":
		text, err = b.list(ctx, args)
	case "whitelist":
		text, err = b.toggleWhitelist(ctx, args)
	case "paywall":
		text, err = b.togglePaywall(ctx, args)
	default:
		text = fmt.Sprintf("Unknown command %q.", command)
	}
	if err != nil {
		logger.Error(ctx, "command failed", zap.Error(err))
		text = commandErrorText(err)
	}

	b.ephemeral(ctx, msg, text)
}

// ping reports liveness and a couple of cheap diagnostics. An optional trial
// count times that many policy-store round trips.
func (b *Bot) ping(ctx context.Context, args []string) (string, error) {
	trials := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Sprintf("%q is not a trial count.", args[0]), nil
		}
		trials = n
		if trials > maxPingTrials {
			trials = maxPingTrials
		}
	}

	policies, err := b.store.Policies(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "pong 🏓 up %s, %d domains on file",
		time.Since(b.started).Round(time.Second), len(policies))

	var total time.Duration
	for i := 0; i < trials; i++ {
		start := time.Now()
		if _, err := b.store.Policies(ctx); err != nil {
			return "", err
		}
		elapsed := time.Since(start)
		total += elapsed
		fmt.Fprintf(&sb, "\ntrial %2d: %s", i+1, elapsed.Round(time.Microsecond))
	}
	if trials > 0 {
		fmt.Fprintf(&sb, "\naverage over %d trials: %s",
			trials, (total / time.Duration(trials)).Round(time.Microsecond))
	}

	return sb.String(), nil
}

func (b *Bot) list(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: list all [page] | list add <domain> | list rm <domain>", nil
	}

	switch strings.ToLower(args[0]) {
	case "all":
		page := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Sprintf("%q is not a page number.", args[1]), nil
			}
			page = n
		}

		return b.listAll(ctx, page)
	case "add":
		if len(args) < 2 {
			return "Usage: list add <domain>", nil
		}

		return b.listAdd(ctx, args[1])
	case "rm":
		if len(args) < 2 {
			return "Usage: list rm <domain>", nil
		}

		return b.listRemove(ctx, args[1])
	default:
		return fmt.Sprintf("Unknown list action %q.", args[0]), nil
	}
}

func (b *Bot) listAll(ctx context.Context, page int) (string, error) {
	policies, err := b.store.Policies(ctx)
	if err != nil {
		return "", err
	}
	if len(policies) == 0 {
		return "No domains on file yet.", nil
	}

	pages := (len(policies) + listPageSize - 1) / listPageSize
	if page > pages {
		return fmt.Sprintf("Page %d is out of range, there are %d pages.", page, pages), nil
	}

	from := (page - 1) * listPageSize
	to := from + listPageSize
	if to > len(policies) {
		to = len(policies)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Domains %d-%d of %d (page %d/%d)\n", from+1, to, len(policies), page, pages)
	fmt.Fprintf(&sb, "%-30s %-5s %-7s %5s\n", "domain", "white", "paywall", "runs")
	for _, p := range policies[from:to] {
		fmt.Fprintf(&sb, "%-30s %-5s %-7s %5d\n",
			p.Domain, yesNo(p.Whitelisted), yesNo(p.PaywallBypass), p.UsageCount)
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) listAdd(ctx context.Context, arg string) (string, error) {
	dom, err := domain.Resolve(arg)
	if err != nil {
		return "", err
	}

	existing, err := b.store.Policy(ctx, dom)
	if err != nil {
		return "", err
	}
	if existing != nil {
		// Whatever its flags, an existing record is never touched by add;
		// whitelist/paywall are the tools for changing it.
		return "", serrors.With(serrors.ErrAlreadyExists, "%s is already on file", dom)
	}

	policy := domain.NewProvisionalPolicy(dom)
	policy.Whitelisted = true
	if err := b.store.StorePolicy(ctx, policy); err != nil {
		return "", err
	}

	return fmt.Sprintf("✅ %s added and whitelisted.", dom), nil
}

func (b *Bot) listRemove(ctx context.Context, arg string) (string, error) {
	dom, err := domain.Resolve(arg)
	if err != nil {
		return "", err
	}

	removed, err := b.store.RemovePolicy(ctx, dom)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("%s is not on file.", dom), nil
	}

	return fmt.Sprintf("🗑 %s removed.", dom), nil
}

func (b *Bot) toggleWhitelist(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: whitelist <domain>", nil
	}

	return b.toggle(ctx, args[0], func(p *domain.DomainPolicy) (string, bool) {
		p.Whitelisted = !p.Whitelisted
		if p.Whitelisted {
			return fmt.Sprintf("✅ %s is now whitelisted.", p.Domain), true
		}

		return fmt.Sprintf("🚫 %s is now blocked.", p.Domain), true
	})
}

func (b *Bot) togglePaywall(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: paywall <domain>", nil
	}

	return b.toggle(ctx, args[0], func(p *domain.DomainPolicy) (string, bool) {
		p.PaywallBypass = !p.PaywallBypass
		if p.PaywallBypass {
			return fmt.Sprintf("🔓 paywall bypass enabled for %s.", p.Domain), true
		}

		return fmt.Sprintf("🔒 paywall bypass disabled for %s.", p.Domain), true
	})
}

// toggle loads a policy, applies fn, and stores the result when fn reports a
// change.
func (b *Bot) toggle(ctx context.Context, arg string, fn func(*domain.DomainPolicy) (string, bool)) (string, error) {
	dom, err := domain.Resolve(arg)
	if err != nil {
		return "", err
	}

	policy, err := b.store.Policy(ctx, dom)
	if err != nil {
		return "", err
	}
	if policy == nil {
		return fmt.Sprintf("%s is not on file.", dom), nil
	}

	text, changed := fn(policy)
	if changed {
		if err := b.store.StorePolicy(ctx, *policy); err != nil {
			return "", err
		}
	}

	return text, nil
}

// ephemeral replies to the command and schedules both the reply and the
// command itself for deletion.
func (b *Bot) ephemeral(ctx context.Context, msg chat.Message, text string) {
	replyID, err := b.messenger.Reply(ctx, msg.ChannelID, msg.ID, text)
	if err != nil {
		logger.Warn(ctx, "could not post command reply", zap.Error(err))

		return
	}

	cleanupCtx := context.WithoutCancel(ctx)
	time.AfterFunc(b.opts.MessageLifetime, func() {
		if err := b.messenger.Delete(cleanupCtx, msg.ChannelID, replyID); err != nil {
			logger.Debug(cleanupCtx, "could not delete command reply", zap.Error(err))
		}
		if err := b.messenger.Delete(cleanupCtx, msg.ChannelID, msg.ID); err != nil {
			logger.Debug(cleanupCtx, "could not delete command message", zap.Error(err))
		}
	})
}

func commandErrorText(err error) string {
	switch {
	case errors.Is(err, serrors.ErrInvalidDomain):
		return "That does not look like a domain name."
	case errors.Is(err, serrors.ErrAlreadyExists):
		return "That domain is already on file."
	case errors.Is(err, serrors.ErrStorage):
		return "⚠ The policy store is unhappy, try again later."
	default:
		return "⚠ That did not work, check the logs."
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

// Ensure Bot conforms to chat.Handler at compile time.
var _ chat.Handler = (*Bot)(nil)
