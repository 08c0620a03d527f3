package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"paperboy/pkg/domain"
	"paperboy/pkg/serrors"
	"paperboy/pkg/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.New(context.Background(), sqlite.Options{
		Path: filepath.Join(t.TempDir(), "policies.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := sqlite.New(context.Background(), sqlite.Options{})
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func TestPolicyAbsentReturnsNil(t *testing.T) {
	s := newStore(t)

	p, err := s.Policy(context.Background(), "example.com")
	require.NoError(t, err)
	require.Nil(t, p, "an unknown domain must yield nil, not an error")
}

func TestStoreAndReadBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	in := domain.DomainPolicy{
		Domain:        "example.com",
		Whitelisted:   true,
		PaywallBypass: true,
		UsageCount:    5,
	}
	require.NoError(t, s.StorePolicy(ctx, in))

	out, err := s.Policy(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, in.Domain, out.Domain)
	require.Equal(t, in.Whitelisted, out.Whitelisted)
	require.Equal(t, in.PaywallBypass, out.PaywallBypass)
	require.Equal(t, in.UsageCount, out.UsageCount)
	require.False(t, out.CreatedAt.IsZero())
	require.False(t, out.UpdatedAt.IsZero())
}

func TestUpsertOverwritesMutableFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.StorePolicy(ctx, domain.DomainPolicy{Domain: "example.com"}))
	require.NoError(t, s.StorePolicy(ctx, domain.DomainPolicy{
		Domain:      "example.com",
		Whitelisted: true,
		UsageCount:  1,
	}))

	out, err := s.Policy(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.True(t, out.Whitelisted)
	require.Equal(t, 1, out.UsageCount)

	policies, err := s.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 1, "upsert must not create a second row")
}

func TestRemovePolicy(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	removed, err := s.RemovePolicy(ctx, "example.com")
	require.NoError(t, err)
	require.False(t, removed)

	require.NoError(t, s.StorePolicy(ctx, domain.DomainPolicy{Domain: "example.com"}))

	removed, err = s.RemovePolicy(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, removed)

	p, err := s.Policy(ctx, "example.com")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestPoliciesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, d := range []string{"c.com", "a.com", "b.com"} {
		require.NoError(t, s.StorePolicy(ctx, domain.DomainPolicy{Domain: d}))
	}

	policies, err := s.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 3)
	require.Equal(t, "c.com", policies[0].Domain)
	require.Equal(t, "a.com", policies[1].Domain)
	require.Equal(t, "b.com", policies[2].Domain)
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policies.db")

	s, err := sqlite.New(ctx, sqlite.Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.StorePolicy(ctx, domain.DomainPolicy{Domain: "example.com", UsageCount: 3}))
	require.NoError(t, s.Close())

	s, err = sqlite.New(ctx, sqlite.Options{Path: path})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, s.Close())
	}()

	out, err := s.Policy(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, 3, out.UsageCount)
}
