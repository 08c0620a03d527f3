package confirm_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperboy/internal/confirm"
	"paperboy/pkg/chat"
	"paperboy/pkg/logger"
	"paperboy/pkg/serrors"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	os.Exit(m.Run())
}

type resolution struct {
	pending  confirm.Pending
	decision confirm.Decision
}

func newRegistry(timeout time.Duration) (*confirm.Registry, chan resolution) {
	resolved := make(chan resolution, 1)
	r := confirm.NewRegistry(timeout, func(_ context.Context, p confirm.Pending, d confirm.Decision) {
		resolved <- resolution{pending: p, decision: d}
	})

	return r, resolved
}

func pendingFixture() confirm.Pending {
	return confirm.Pending{
		Domain:    "example.com",
		URL:       "https://example.com/story",
		ChannelID: 10,
		MessageID: 100,
		PromptID:  101,
		AuthorID:  7,
	}
}

func TestAddFillsIDAndDeadline(t *testing.T) {
	r, _ := newRegistry(time.Minute)

	p, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.False(t, p.Deadline.IsZero())
	require.True(t, r.InFlight("example.com"))
	require.Equal(t, 1, r.Len())
}

func TestAcceptReactionResolves(t *testing.T) {
	r, resolved := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	handled := r.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: 101, UserID: 7, Emoji: confirm.AcceptEmoji,
	})
	require.True(t, handled)

	res := <-resolved
	require.Equal(t, confirm.Accepted, res.decision)
	require.Equal(t, "example.com", res.pending.Domain)
	require.False(t, r.InFlight("example.com"))
	require.Equal(t, 0, r.Len())
}

func TestRejectReactionResolves(t *testing.T) {
	r, resolved := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	handled := r.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: 101, UserID: 7, Emoji: confirm.RejectEmojiAlt,
	})
	require.True(t, handled)
	require.Equal(t, confirm.Rejected, (<-resolved).decision)
}

func TestNonAuthorReactionIgnored(t *testing.T) {
	r, resolved := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	for _, bystander := range []chat.UserID{99, 42} {
		handled := r.HandleReaction(context.Background(), chat.Reaction{
			ChannelID: 10, MessageID: 101, UserID: bystander, Emoji: confirm.AcceptEmoji,
		})
		require.False(t, handled, "only the triggering author may resolve")
	}
	require.True(t, r.InFlight("example.com"), "the entry must stay open")
	require.Empty(t, resolved)
}

func TestUnknownEmojiIgnored(t *testing.T) {
	r, resolved := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	handled := r.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: 101, UserID: 7, Emoji: "🎉",
	})
	require.False(t, handled)
	require.True(t, r.InFlight("example.com"))
	require.Empty(t, resolved)
}

func TestReactionOnUnknownMessageIgnored(t *testing.T) {
	r, _ := newRegistry(time.Minute)

	handled := r.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: 999, UserID: 7, Emoji: confirm.AcceptEmoji,
	})
	require.False(t, handled)
}

func TestSecondConfirmationForDomainRejected(t *testing.T) {
	r, _ := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	dup := pendingFixture()
	dup.PromptID = 201
	_, err = r.Add(context.Background(), dup)
	require.ErrorIs(t, err, serrors.ErrAlreadyExists)
	require.Equal(t, 1, r.Len())
}

func TestTimeoutResolves(t *testing.T) {
	r, resolved := newRegistry(20 * time.Millisecond)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	select {
	case res := <-resolved:
		require.Equal(t, confirm.TimedOut, res.decision)
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	require.False(t, r.InFlight("example.com"))
}

func TestDomainReusableAfterResolution(t *testing.T) {
	r, resolved := newRegistry(time.Minute)
	_, err := r.Add(context.Background(), pendingFixture())
	require.NoError(t, err)

	r.HandleReaction(context.Background(), chat.Reaction{
		ChannelID: 10, MessageID: 101, UserID: 7, Emoji: confirm.RejectEmoji,
	})
	<-resolved

	next := pendingFixture()
	next.PromptID = 301
	_, err = r.Add(context.Background(), next)
	require.NoError(t, err)
}
