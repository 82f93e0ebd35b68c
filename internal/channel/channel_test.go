package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_SevenChannelsDefaultWeb(t *testing.T) {
	r := NewRegistry()
	list := r.List()
	require.Len(t, list, 7)

	cur := r.Current()
	assert.Equal(t, "web", cur.ID)
}

func TestList_ExpectedIDs(t *testing.T) {
	r := NewRegistry()
	var ids []string
	for _, c := range r.List() {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{
		"web", "slack", "teams", "discord", "twitch", "whatsapp", "apple-business-chat",
	}, ids)
}

func TestGet_UnknownID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestSwitch_UnknownIDIsNoOp(t *testing.T) {
	r := NewRegistry()
	before := r.Current()
	_, ok := r.Switch("nope")
	assert.False(t, ok)
	assert.Equal(t, before.ID, r.Current().ID)
}

func TestSwitch_KnownID(t *testing.T) {
	r := NewRegistry()
	c, ok := r.Switch("slack")
	require.True(t, ok)
	assert.Equal(t, "slack", c.ID)
	assert.Equal(t, "slack", r.Current().ID)
}

func TestAvailableArtifactKindsAndCapabilities_FollowCurrent(t *testing.T) {
	r := NewRegistry()
	r.Switch("teams")
	assert.Contains(t, r.AvailableArtifactKinds(), "adaptive_card")
	assert.Contains(t, r.Capabilities(), "adaptive_cards")
}

func TestClone_MutationIsolation(t *testing.T) {
	r := NewRegistry()
	c, ok := r.Get("web")
	require.True(t, ok)
	c.ArtifactKinds[0] = "mutated"

	c2, _ := r.Get("web")
	assert.NotEqual(t, "mutated", c2.ArtifactKinds[0])
}
