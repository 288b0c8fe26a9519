package themis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGroups map[string][]string

func (g staticGroups) GroupsForUser(ctx context.Context, name string) ([]string, error) {
	return g[name], nil
}

func TestIntersectUnfilteredCoversFiltered(t *testing.T) {
	ctx := context.Background()

	got, err := IntersectExpanded(ctx, []string{"read:users"}, []string{"read:users!user=alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:users!user=alice"}, got)

	got, err = IntersectExpanded(ctx, []string{"read:users!user=alice"}, []string{"read:users"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:users!user=alice"}, got)
}

func TestIntersectDisjointFilters(t *testing.T) {
	got, err := IntersectExpanded(context.Background(),
		[]string{"read:users!user=alice"},
		[]string{"read:users!user=bob"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntersectDifferentBases(t *testing.T) {
	got, err := IntersectExpanded(context.Background(),
		[]string{"read:users"}, []string{"read:servers"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntersectServerCoveredByUserGrant(t *testing.T) {
	ctx := context.Background()

	got, err := IntersectExpanded(ctx,
		[]string{"access:servers!server=alice/work"},
		[]string{"access:servers!user=alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"access:servers!server=alice/work"}, got)

	// and in the other order
	got, err = IntersectExpanded(ctx,
		[]string{"access:servers!user=alice"},
		[]string{"access:servers!server=alice/work"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"access:servers!server=alice/work"}, got)
}

func TestIntersectServerNotCoveredByOtherUser(t *testing.T) {
	got, err := IntersectExpanded(context.Background(),
		[]string{"access:servers!server=alice/work"},
		[]string{"access:servers!user=bob"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntersectGroupHierarchyNeedsLister(t *testing.T) {
	ctx := context.Background()
	scopesA := []string{"read:users!user=alice"}
	scopesB := []string{"read:users!group=maenads"}

	// without a lister the cross-kind combination resolves to nothing
	got, err := IntersectExpanded(ctx, scopesA, scopesB, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	groups := staticGroups{"alice": {"maenads"}}
	got, err = IntersectExpanded(ctx, scopesA, scopesB, groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"read:users!user=alice"}, got)
}

func TestIntersectGroupCoversMembersServer(t *testing.T) {
	groups := staticGroups{"alice": {"maenads"}}
	got, err := IntersectExpanded(context.Background(),
		[]string{"access:servers!server=alice/work"},
		[]string{"access:servers!group=maenads"}, groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"access:servers!server=alice/work"}, got)
}

func TestCheckScopesDirectionMatters(t *testing.T) {
	// an unfiltered requirement is not satisfied by a filtered grant
	assert.Empty(t, CheckScopes([]string{"read:users"}, []string{"read:users!user=alice"}))

	// a filtered requirement is satisfied by an unfiltered grant
	assert.Equal(t,
		[]string{"read:users!user=alice"},
		CheckScopes([]string{"read:users!user=alice"}, []string{"read:users"}))
}

func TestCheckScopesExactMatch(t *testing.T) {
	assert.Equal(t,
		[]string{"access:services!service=grafana"},
		CheckScopes(
			[]string{"access:services!service=grafana"},
			[]string{"access:services!service=grafana", "read:hub"}))
}

func TestCheckScopesAnyMatchSuffices(t *testing.T) {
	matched := CheckScopes(
		[]string{"read:hub", "shutdown"},
		[]string{"read:hub"})
	assert.Equal(t, []string{"read:hub"}, matched)
}

func TestCheckScopesNoGrants(t *testing.T) {
	assert.Empty(t, CheckScopes([]string{"read:hub"}, nil))
}

func TestParseUnparseRoundTrip(t *testing.T) {
	scopes := []string{
		"read:users!user=alice",
		"read:users!user=bob",
		"servers",
		"access:servers!server=alice/work",
	}
	parsed := ParseScopes(scopes)
	assert.True(t, parsed["servers"].All)
	assert.ElementsMatch(t, scopes, UnparseScopes(parsed))
}

func TestParseUnfilteredSubsumesFiltered(t *testing.T) {
	parsed := ParseScopes([]string{"read:users!user=alice", "read:users"})
	assert.True(t, parsed["read:users"].All)
	assert.Equal(t, []string{"read:users"}, UnparseScopes(parsed))
}
