package reader_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"paperboy/internal/confirm"
	"paperboy/internal/reader"
	"paperboy/pkg/chat"
	"paperboy/pkg/domain"
	"paperboy/pkg/logger"
	"paperboy/pkg/metrics"
	"paperboy/pkg/pipeline"
	"paperboy/pkg/serrors"
	"paperboy/pkg/storage/memory"
)

// testMetrics is created once; the prometheus default registry rejects
// duplicate collector registration.
var testMetrics *metrics.Metrics

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)

	var err error
	testMetrics, err = metrics.New(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

type sent struct {
	ch   chat.ChannelID
	to   chat.MessageID
	text string
	id   chat.MessageID
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  chat.MessageID
	replies []sent
	edits   []sent
	reacts  []chat.Reaction
	deletes []chat.MessageID
	uploads int
	// uploadErrs and replyErrs are consumed one error per call; exhausted
	// means success.
	uploadErrs []error
	replyErrs  []error
}

func (f *fakeMessenger) Post(_ context.Context, ch chat.ChannelID, text string) (chat.MessageID, error) {
	return f.record(ch, 0, text), nil
}

func (f *fakeMessenger) Reply(_ context.Context, ch chat.ChannelID, to chat.MessageID, text string) (chat.MessageID, error) {
	f.mu.Lock()
	if len(f.replyErrs) > 0 {
		err := f.replyErrs[0]
		f.replyErrs = f.replyErrs[1:]
		f.mu.Unlock()

		return 0, err
	}
	f.mu.Unlock()

	return f.record(ch, to, text), nil
}

func (f *fakeMessenger) record(ch chat.ChannelID, to chat.MessageID, text string) chat.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.replies = append(f.replies, sent{ch: ch, to: to, text: text, id: f.nextID})

	return f.nextID
}

func (f *fakeMessenger) Edit(_ context.Context, ch chat.ChannelID, id chat.MessageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sent{ch: ch, id: id, text: text})

	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ chat.ChannelID, id chat.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)

	return nil
}

func (f *fakeMessenger) React(_ context.Context, ch chat.ChannelID, id chat.MessageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reacts = append(f.reacts, chat.Reaction{ChannelID: ch, MessageID: id, Emoji: emoji})

	return nil
}

func (f *fakeMessenger) Upload(_ context.Context, _ chat.ChannelID, _ chat.MessageID, _ string, _ ...chat.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	if len(f.uploadErrs) > 0 {
		err := f.uploadErrs[0]
		f.uploadErrs = f.uploadErrs[1:]

		return err
	}

	return nil
}

func (f *fakeMessenger) lastReply() sent {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.replies[len(f.replies)-1]
}

type renderCall struct {
	url    string
	bypass bool
}

type fakeRenderer struct {
	mu       sync.Mutex
	artifact *domain.Artifact
	err      error
	delay    time.Duration
	calls    []renderCall
}

func (f *fakeRenderer) Render(_ context.Context, url string, bypass bool) (*domain.Artifact, error) {
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, renderCall{url: url, bypass: bypass})
	if f.err != nil {
		return nil, f.err
	}

	return f.artifact, nil
}

func defaultArtifact() *domain.Artifact {
	return &domain.Artifact{
		Title:          "A Story",
		Author:         "Jane Doe",
		SummaryText:    "short summary",
		VideoFile:      "/tmp/a-story.webm",
		TranscriptFile: "/tmp/a-story.txt",
		Duration:       90 * time.Second,
	}
}

type fixture struct {
	store     *memory.Store
	messenger *fakeMessenger
	renderer  *fakeRenderer
	reader    *reader.Reader
}

func newFixture(t *testing.T, opts reader.Options) *fixture {
	t.Helper()

	f := &fixture{
		store:     memory.New(),
		messenger: &fakeMessenger{},
		renderer:  &fakeRenderer{artifact: defaultArtifact()},
	}
	f.reader = reader.New(f.store, f.messenger, f.renderer, testMetrics, opts)

	return f
}

func message(text string) chat.Message {
	return chat.Message{
		ID:         100,
		ChannelID:  10,
		AuthorID:   7,
		AuthorName: "jane",
		Text:       text,
	}
}

func (f *fixture) policy(t *testing.T, dom string) *domain.DomainPolicy {
	t.Helper()

	p, err := f.store.Policy(context.Background(), dom)
	require.NoError(t, err)

	return p
}

func TestMessageWithoutLinksIgnored(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("good morning everyone"))

	require.Empty(t, f.messenger.replies)
	require.Empty(t, f.renderer.calls)
}

func TestUnknownDomainOpensConfirmation(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("read this https://example.com/story"))

	p := f.policy(t, "example.com")
	require.NotNil(t, p, "a provisional policy must be stored")
	require.False(t, p.Whitelisted)
	require.Equal(t, 0, p.UsageCount)

	require.Len(t, f.messenger.replies, 1, "exactly one prompt must be posted")
	require.Contains(t, f.messenger.replies[0].text, "example.com")
	require.Empty(t, f.renderer.calls, "nothing renders before a verdict")
}

func TestAcceptWhitelistsAndRenders(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	promptID := f.messenger.lastReply().id

	handled := f.reader.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: promptID, UserID: 7, Emoji: confirm.AcceptEmoji,
	})
	require.True(t, handled)
	f.reader.Wait()

	p := f.policy(t, "example.com")
	require.True(t, p.Whitelisted)
	require.Equal(t, 1, p.UsageCount, "a successful run must bump the counter")

	require.Len(t, f.renderer.calls, 1)
	require.Equal(t, "https://example.com/story", f.renderer.calls[0].url)
	require.Equal(t, 1, f.messenger.uploads)
}

func TestRejectKeepsDomainBlocked(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	promptID := f.messenger.lastReply().id

	f.reader.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: promptID, UserID: 7, Emoji: confirm.RejectEmoji,
	})

	p := f.policy(t, "example.com")
	require.False(t, p.Whitelisted)
	require.Empty(t, f.renderer.calls)
	require.Equal(t, 0, f.messenger.uploads)
}

func TestNonAuthorReactionDoesNotResolve(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	promptID := f.messenger.lastReply().id

	for _, bystander := range []chat.UserID{99, 42} {
		handled := f.reader.HandleReaction(context.Background(), chat.Reaction{
			ChannelID: 10, MessageID: promptID, UserID: bystander, Emoji: confirm.AcceptEmoji,
		})
		require.False(t, handled)
	}
	require.False(t, f.policy(t, "example.com").Whitelisted)
	require.Empty(t, f.renderer.calls)
}

func TestConfirmationTimeoutKeepsDomainBlocked(t *testing.T) {
	f := newFixture(t, reader.Options{ConfirmTimeout: 20 * time.Millisecond})

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	promptID := f.messenger.lastReply().id

	require.Eventually(t, func() bool {
		f.messenger.mu.Lock()
		defer f.messenger.mu.Unlock()
		for _, e := range f.messenger.edits {
			if e.id == promptID {
				return true
			}
		}

		return false
	}, time.Second, 5*time.Millisecond, "the prompt must be edited after the timeout")

	require.False(t, f.policy(t, "example.com").Whitelisted)
	require.Empty(t, f.renderer.calls)
}

func TestKnownBlockedDomainGetsRejectionMark(t *testing.T) {
	f := newFixture(t, reader.Options{})
	require.NoError(t, f.store.StorePolicy(context.Background(),
		domain.NewProvisionalPolicy("example.com")))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))

	require.Len(t, f.messenger.reacts, 1, "a blocked link gets a reaction, not a prompt")
	require.Equal(t, chat.MessageID(100), f.messenger.reacts[0].MessageID)
	require.Empty(t, f.messenger.replies)
	require.Empty(t, f.renderer.calls)
}

func TestSecondLinkWhileConfirmationInFlightHeld(t *testing.T) {
	f := newFixture(t, reader.Options{})

	f.reader.HandleMessage(context.Background(), message("https://example.com/one"))
	require.Len(t, f.messenger.replies, 1)

	second := message("https://example.com/two")
	second.ID = 102
	f.reader.HandleMessage(context.Background(), second)

	require.Len(t, f.messenger.replies, 1, "no second prompt while the first is open")
	require.Empty(t, f.messenger.reacts, "no rejection mark while the verdict is pending")
}

func TestWhitelistedDomainRenders(t *testing.T) {
	f := newFixture(t, reader.Options{})
	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Len(t, f.renderer.calls, 1)
	require.False(t, f.renderer.calls[0].bypass)
	require.Equal(t, 1, f.messenger.uploads)
	require.Equal(t, 1, f.policy(t, "example.com").UsageCount)
}

func TestPaywallBypassFlagReachesRenderer(t *testing.T) {
	f := newFixture(t, reader.Options{})
	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	p.PaywallBypass = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Len(t, f.renderer.calls, 1)
	require.True(t, f.renderer.calls[0].bypass)
}

func TestStageFailureLeavesCountUnchanged(t *testing.T) {
	f := newFixture(t, reader.Options{})
	f.renderer.err = pipeline.StageFailed(pipeline.StageSpeech,
		serrors.With(serrors.ErrUnavailable, "tts down"))

	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Equal(t, 0, f.policy(t, "example.com").UsageCount)
	require.Equal(t, 0, f.messenger.uploads, "a failed run must not publish anything")
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, reader.Options{UploadDelay: time.Millisecond})
	f.messenger.uploadErrs = []error{
		serrors.With(serrors.ErrTransient, "connection reset"),
		serrors.With(serrors.ErrTransient, "connection reset"),
	}

	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Equal(t, 3, f.messenger.uploads, "two transient failures then success")
	require.Equal(t, 1, f.policy(t, "example.com").UsageCount)
}

func TestUploadGivesUpAfterAttempts(t *testing.T) {
	f := newFixture(t, reader.Options{UploadAttempts: 3, UploadDelay: time.Millisecond})
	f.messenger.uploadErrs = []error{
		serrors.With(serrors.ErrTransient, "reset"),
		serrors.With(serrors.ErrTransient, "reset"),
		serrors.With(serrors.ErrTransient, "reset"),
	}

	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Equal(t, 3, f.messenger.uploads)
	require.Equal(t, 0, f.policy(t, "example.com").UsageCount,
		"a failed upload must not count as a successful run")
}

func TestSlowRenderDoesNotBlockMessageHandling(t *testing.T) {
	f := newFixture(t, reader.Options{})
	f.renderer.delay = 300 * time.Millisecond

	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	start := time.Now()
	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	require.Less(t, time.Since(start), 100*time.Millisecond,
		"the render must run off the event dispatch path")

	f.reader.Wait()
	require.Len(t, f.renderer.calls, 1)
	require.Equal(t, 1, f.messenger.uploads)
}

func TestFailureReportedWhenStatusMessageFails(t *testing.T) {
	f := newFixture(t, reader.Options{})
	f.messenger.replyErrs = []error{serrors.With(serrors.ErrUnavailable, "send failed")}
	f.renderer.err = pipeline.StageFailed(pipeline.StageFetch,
		serrors.With(serrors.ErrUnavailable, "origin down"))

	p := domain.NewProvisionalPolicy("example.com")
	p.Whitelisted = true
	require.NoError(t, f.store.StorePolicy(context.Background(), p))

	f.reader.HandleMessage(context.Background(), message("https://example.com/story"))
	f.reader.Wait()

	require.Len(t, f.messenger.replies, 1,
		"with no status message the failure still reaches the channel")
	require.Contains(t, f.messenger.replies[0].text, "could not fetch")
	require.Equal(t, chat.MessageID(100), f.messenger.replies[0].to)
}
