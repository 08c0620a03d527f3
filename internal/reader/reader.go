// Package reader routes channel links through the policy store and the
// content pipeline: unknown domains open a moderator confirmation, blocked
// domains get a rejection mark, whitelisted domains are rendered and the
// artifact posted back to the channel.
package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"mvdan.cc/xurls/v2"

	"paperboy/internal/confirm"
	"paperboy/pkg/chat"
	"paperboy/pkg/domain"
	"paperboy/pkg/logger"
	"paperboy/pkg/metrics"
	"paperboy/pkg/pipeline"
	"paperboy/pkg/retry"
	"paperboy/pkg/serrors"
	"paperboy/pkg/storage"
)

// linkPattern matches schemeful URLs inside free-form message text.
var linkPattern = xurls.Strict() //nolint: gochecknoglobals

// Options configure the reader.
type Options struct {
	// ConfirmTimeout bounds how long a domain confirmation stays open.
	ConfirmTimeout time.Duration
	// UploadAttempts and UploadDelay drive the bounded retry of the final
	// chat upload.
	UploadAttempts int
	UploadDelay    time.Duration
}

// Reader is the link-routing core.
type Reader struct {
	store     storage.PolicyStorage
	messenger chat.Messenger
	renderer  pipeline.Renderer
	metrics   *metrics.Metrics
	registry  *confirm.Registry
	opts      Options
	runs      sync.WaitGroup
}

// New constructs a Reader and its confirmation registry.
func New(store storage.PolicyStorage,
	messenger chat.Messenger,
	renderer pipeline.Renderer,
	m *metrics.Metrics,
	opts Options) *Reader {
	if opts.UploadAttempts < 1 {
		opts.UploadAttempts = 3
	}
	if opts.UploadDelay <= 0 {
		opts.UploadDelay = time.Second
	}

	r := &Reader{
		store:     store,
		messenger: messenger,
		renderer:  renderer,
		metrics:   m,
		opts:      opts,
	}
	r.registry = confirm.NewRegistry(opts.ConfirmTimeout, r.resolved)

	return r
}

// HandleMessage extracts every link from msg and routes each one. Messages
// without links are ignored.
func (r *Reader) HandleMessage(ctx context.Context, msg chat.Message) {
	for _, link := range linkPattern.FindAllString(msg.Text, -1) {
		r.handleLink(ctx, msg, link)
	}
}

// HandleReaction feeds a reaction to the confirmation registry. Returns true
// when it resolved a pending confirmation.
func (r *Reader) HandleReaction(ctx context.Context, rc chat.Reaction) bool {
	return r.registry.HandleReaction(ctx, rc)
}

func (r *Reader) handleLink(ctx context.Context, msg chat.Message, link string) {
	dom, err := domain.FromURL(link)
	if err != nil {
		logger.Debug(ctx, "ignoring link without a usable domain",
			zap.String("url", link), zap.Error(err))

		return
	}

	ctx = logger.WithFields(ctx,
		zap.String("domain", dom),
		zap.String("url", link),
		zap.Int64("message_id", int64(msg.ID)))

	policy, err := r.store.Policy(ctx, dom)
	if err != nil {
		logger.Error(ctx, "policy lookup failed", zap.Error(err))
		r.reply(ctx, msg.ChannelID, msg.ID, "⚠ I could not check the policy store, try again later.")

		return
	}

	switch {
	case policy == nil:
		r.openConfirmation(ctx, msg, dom, link)
	case policy.Whitelisted:
		r.dispatch(ctx, msg.ChannelID, msg.ID, dom, link)
	default:
		// Known and not whitelisted. While a confirmation is still open the
		// link is simply held; otherwise mark it blocked.
		if r.registry.InFlight(dom) {
			logger.Debug(ctx, "confirmation in flight, holding link")

			return
		}
		if err := r.messenger.React(ctx, msg.ChannelID, msg.ID, confirm.RejectEmojiAlt); err != nil {
			logger.Warn(ctx, "could not mark blocked link", zap.Error(err))
		}
	}
}

// openConfirmation records a provisional policy for the new domain and asks
// the message author for a verdict.
func (r *Reader) openConfirmation(ctx context.Context, msg chat.Message, dom, link string) {
	provisional := domain.NewProvisionalPolicy(dom)
	if err := r.store.StorePolicy(ctx, provisional); err != nil {
		logger.Error(ctx, "could not store provisional policy", zap.Error(err))
		r.reply(ctx, msg.ChannelID, msg.ID, "⚠ I could not update the policy store, try again later.")

		return
	}

	timeout := r.opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = confirm.DefaultTimeout
	}
	prompt := fmt.Sprintf(
		"I don't know %s yet. React %s to whitelist it or %s to reject it (%s, %d seconds to decide).",
		dom, confirm.AcceptEmoji, confirm.RejectEmoji, msg.AuthorName, int(timeout.Seconds()))

	promptID, err := r.messenger.Reply(ctx, msg.ChannelID, msg.ID, prompt)
	if err != nil {
		logger.Error(ctx, "could not post confirmation prompt", zap.Error(err))

		return
	}

	_, err = r.registry.Add(ctx, confirm.Pending{
		Domain:    dom,
		URL:       link,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		PromptID:  promptID,
		AuthorID:  msg.AuthorID,
	})
	if err != nil {
		// Another link for the same domain won the race; withdraw the prompt.
		logger.Debug(ctx, "confirmation already in flight", zap.Error(err))
		if derr := r.messenger.Delete(ctx, msg.ChannelID, promptID); derr != nil {
			logger.Warn(ctx, "could not withdraw duplicate prompt", zap.Error(derr))
		}
	}
}

// resolved handles every confirmation outcome. Accepting whitelists the
// domain and immediately renders the link that triggered the prompt.
func (r *Reader) resolved(ctx context.Context, p confirm.Pending, d confirm.Decision) {
	ctx = logger.WithFields(ctx,
		zap.String("confirmation_id", p.ID),
		zap.String("domain", p.Domain))
	logger.Info(ctx, "confirmation resolved", zap.String("decision", d.String()))
	r.metrics.Confirmations.WithLabelValues(outcomeLabel(d)).Inc()

	switch d {
	case confirm.Accepted:
		policy, err := r.store.Policy(ctx, p.Domain)
		if err != nil {
			logger.Error(ctx, "policy lookup failed", zap.Error(err))
			r.edit(ctx, p.ChannelID, p.PromptID, "⚠ I could not update the policy store.")

			return
		}
		if policy == nil {
			fresh := domain.NewProvisionalPolicy(p.Domain)
			policy = &fresh
		}
		policy.Whitelisted = true
		if err := r.store.StorePolicy(ctx, *policy); err != nil {
			logger.Error(ctx, "could not whitelist domain", zap.Error(err))
			r.edit(ctx, p.ChannelID, p.PromptID, "⚠ I could not update the policy store.")

			return
		}
		r.edit(ctx, p.ChannelID, p.PromptID, fmt.Sprintf("✅ %s is now whitelisted.", p.Domain))
		r.dispatch(ctx, p.ChannelID, p.MessageID, p.Domain, p.URL)
	case confirm.Rejected:
		r.edit(ctx, p.ChannelID, p.PromptID, fmt.Sprintf("🚫 %s stays blocked.", p.Domain))
	case confirm.TimedOut:
		r.edit(ctx, p.ChannelID, p.PromptID,
			fmt.Sprintf("⌛ No verdict on %s in time, it stays blocked.", p.Domain))
	}
}

// dispatch runs the pipeline on its own goroutine so the event dispatcher
// keeps delivering updates (reactions for other pending confirmations in
// particular) while a render is in flight.
func (r *Reader) dispatch(ctx context.Context, ch chat.ChannelID, trigger chat.MessageID, dom, link string) {
	r.runs.Add(1)
	go func() {
		defer r.runs.Done()
		r.run(ctx, ch, trigger, dom, link)
	}()
}

// Wait blocks until every in-flight pipeline run has finished.
func (r *Reader) Wait() {
	r.runs.Wait()
}

// run renders link and posts the artifact. The policy is re-read here so that
// bypass toggles take effect on the very next run.
func (r *Reader) run(ctx context.Context, ch chat.ChannelID, trigger chat.MessageID, dom, link string) {
	policy, err := r.store.Policy(ctx, dom)
	if err != nil || policy == nil {
		logger.Error(ctx, "policy re-read failed", zap.Error(err))
		r.reply(ctx, ch, trigger, "⚠ I could not check the policy store, try again later.")

		return
	}

	statusID, err := r.messenger.Reply(ctx, ch, trigger, "⏳ On it, fetching the page…")
	if err != nil {
		logger.Warn(ctx, "could not post status message", zap.Error(err))
	}

	runCtx := ctx
	if statusID != 0 {
		runCtx = pipeline.WithStageReporter(ctx, func(s pipeline.Stage) {
			if err := r.messenger.Edit(ctx, ch, statusID, "⏳ "+stageLabel(s)); err != nil {
				logger.Debug(ctx, "could not update status message", zap.Error(err))
			}
		})
	}

	start := time.Now()
	artifact, err := r.renderer.Render(runCtx, link, policy.PaywallBypass)
	if err != nil {
		r.failed(ctx, ch, trigger, statusID, pipeline.FailedStage(err), err)

		return
	}

	files := make([]chat.File, 0, 2)
	if artifact.VideoFile != "" {
		files = append(files, chat.File{Name: filepath.Base(artifact.VideoFile), Path: artifact.VideoFile})
	}
	if artifact.TranscriptFile != "" {
		files = append(files, chat.File{Name: filepath.Base(artifact.TranscriptFile), Path: artifact.TranscriptFile})
	}

	if statusID != 0 {
		r.edit(ctx, ch, statusID, "⏳ "+stageLabel(pipeline.StageUpload))
	}
	err = retry.Do(ctx, r.opts.UploadAttempts, r.opts.UploadDelay, func(ctx context.Context) error {
		return r.messenger.Upload(ctx, ch, trigger, captionFor(artifact), files...)
	}, serrors.ErrTransient, serrors.ErrRateLimited)
	if err != nil {
		r.failed(ctx, ch, trigger, statusID, pipeline.StageUpload, err)

		return
	}

	if statusID != 0 {
		r.edit(ctx, ch, statusID, summaryMessage(artifact))
	}

	policy.UsageCount++
	if err := r.store.StorePolicy(ctx, *policy); err != nil {
		logger.Error(ctx, "could not bump usage count", zap.Error(err))
	}

	kind := "article"
	if artifact.VideoFile == "" {
		kind = "video"
	}
	r.metrics.PipelineRuns.WithLabelValues(kind).Inc()
	r.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)))
	logger.Info(ctx, "artifact posted",
		zap.String("kind", kind),
		zap.Duration("took", time.Since(start)))
}

func (r *Reader) failed(ctx context.Context, ch chat.ChannelID, trigger, statusID chat.MessageID, stage pipeline.Stage, err error) {
	logger.Error(ctx, "pipeline run failed",
		zap.String("stage", string(stage)), zap.Error(err))
	r.metrics.PipelineFailures.WithLabelValues(string(stage)).Inc()

	if statusID != 0 {
		r.edit(ctx, ch, statusID, failureText(stage))

		return
	}
	// The status message never made it out; report the failure as a fresh
	// reply so the channel still hears about it.
	r.reply(ctx, ch, trigger, failureText(stage))
}

func (r *Reader) reply(ctx context.Context, ch chat.ChannelID, to chat.MessageID, text string) {
	if _, err := r.messenger.Reply(ctx, ch, to, text); err != nil {
		logger.Warn(ctx, "could not post reply", zap.Error(err))
	}
}

func (r *Reader) edit(ctx context.Context, ch chat.ChannelID, id chat.MessageID, text string) {
	if err := r.messenger.Edit(ctx, ch, id, text); err != nil {
		logger.Warn(ctx, "could not edit message", zap.Error(err))
	}
}

func stageLabel(s pipeline.Stage) string {
	switch s {
	case pipeline.StageFetch:
		return "fetching the page…"
	case pipeline.StageExtract:
		return "extracting the article…"
	case pipeline.StageSummarize:
		return "summarizing…"
	case pipeline.StageSpeech:
		return "recording the narration…"
	case pipeline.StageVideo:
		return "rendering the video…"
	case pipeline.StageUpload:
		return "uploading…"
	default:
		return "working…"
	}
}

func failureText(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageFetch:
		return "❌ I could not fetch that page."
	case pipeline.StageExtract:
		return "❌ I could not find an article on that page."
	case pipeline.StageSummarize:
		return "❌ Summarization failed, sorry."
	case pipeline.StageSpeech:
		return "❌ I lost my voice, the narration failed."
	case pipeline.StageVideo:
		return "❌ Video rendering failed."
	case pipeline.StageUpload:
		return "❌ The upload kept failing, giving up."
	default:
		return "❌ Something went wrong."
	}
}

func outcomeLabel(d confirm.Decision) string {
	switch d {
	case confirm.Accepted:
		return "accepted"
	case confirm.Rejected:
		return "rejected"
	default:
		return "timed_out"
	}
}

func captionFor(a *domain.Artifact) string {
	caption := a.Title
	if a.Author != "" {
		caption += " — " + a.Author
	}
	if a.Duration > 0 {
		caption += fmt.Sprintf(" (%s)", a.Duration.Round(time.Second))
	}

	return caption
}

func summaryMessage(a *domain.Artifact) string {
	head := a.Title
	if a.Author != "" {
		head += " — " + a.Author
	}
	if a.PublishDate != "" {
		head += " (" + a.PublishDate + ")"
	}

	return head + "\n\n" + a.SummaryText
}
