package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"V.S.":           "v s",
		"Nikhil J Prasad": "nikhil j prasad",
		"  K.S.S  ":      "k s s",
		"govind-krishnan": "govind krishnan",
		"José!":          "jos",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestResolveNoAssigneeSentinels(t *testing.T) {
	r := NewDefaultRegistry()
	for _, raw := range []string{"", "none", "None", "Unassigned", "NULL", "n/a", "  "} {
		_, ok := r.Resolve(raw)
		assert.False(t, ok, "expected no assignee for %q", raw)
	}
}

func TestResolveAliasBeatsFuzzy(t *testing.T) {
	r := NewDefaultRegistry()

	m, ok := r.Match("Kyla", DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Kailas S S", m.Name)
	assert.Equal(t, 1.0, m.Score)
}

func TestResolveExactName(t *testing.T) {
	r := NewDefaultRegistry()

	m, ok := r.Match("nikhil j. prasad", DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Nikhil J Prasad", m.Name)
	assert.Equal(t, 1.0, m.Score)
}

func TestResolveSubstring(t *testing.T) {
	r := NewRegistry("Alice Johnson", "Bob Smith")

	m, ok := r.Match("alice johnson jr", DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Alice Johnson", m.Name)
	assert.Equal(t, 0.85, m.Score)
}

func TestResolveFuzzy(t *testing.T) {
	r := NewDefaultRegistry()

	m, ok := r.Match("Nikhil Prasad", DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Nikhil J Prasad", m.Name)
	assert.GreaterOrEqual(t, m.Score, DefaultThreshold)
}

func TestResolveBelowThreshold(t *testing.T) {
	r := NewDefaultRegistry()

	_, ok := r.Resolve("Zebediah Quartermaine")
	assert.False(t, ok)
}

func TestThresholdOverride(t *testing.T) {
	r := NewRegistry("Marianne")

	_, ok := r.Match("Marvin", 0.9)
	assert.False(t, ok)

	m, ok := r.Match("Marvin", 0.3)
	require.True(t, ok)
	assert.Equal(t, "Marianne", m.Name)
}

func TestTieBreakDeclarationOrder(t *testing.T) {
	// "abcz" is the same edit distance from both members; the first
	// declared member must win, consistently.
	r := NewRegistry("abcx", "abcy")

	for i := 0; i < 10; i++ {
		m, ok := r.Match("abcz", 0.5)
		require.True(t, ok)
		assert.Equal(t, "abcx", m.Name)
	}
}

func TestAddAlias(t *testing.T) {
	r := NewRegistry("Grace Hopper")

	_, ok := r.Resolve("The Admiral")
	assert.False(t, ok)

	r.AddAlias("Grace Hopper", "The Admiral")
	name, ok := r.Resolve("the admiral")
	require.True(t, ok)
	assert.Equal(t, "Grace Hopper", name)
}

func TestReplaceDropsStaleAliases(t *testing.T) {
	r := NewDefaultRegistry()
	r.Replace([]string{"Ada Lovelace"})

	_, ok := r.Resolve("kyla")
	assert.False(t, ok, "alias for a removed member must not resolve")

	assert.Equal(t, []string{"Ada Lovelace"}, r.Members())
}
