package conversation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Idempotent(t *testing.T) {
	s := New()
	c1 := s.Create("conv-1", "vanilla", "web")
	c2 := s.Create("conv-1", "other", "slack")
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, "vanilla", c2.PersonaID, "second create must return the existing conversation unchanged")
}

func TestAppend_UnknownConversation(t *testing.T) {
	s := New()
	err := s.Append("nope", "user", "hi", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMessageCap_KeepsLastNInInsertionOrder(t *testing.T) {
	s := New(WithCaps(5, 100))
	s.Create("c", "p", "web")
	for i := 0; i < 12; i++ {
		require.NoError(t, s.Append("c", "user", fmt.Sprintf("msg-%d", i), nil))
	}
	hist, err := s.History("c", 0)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	for i, m := range hist {
		assert.Equal(t, fmt.Sprintf("msg-%d", 7+i), m.Content)
	}
}

func TestEvictionMonotonicity_CapRespectedAndLRU(t *testing.T) {
	s := New(WithCaps(50, 3))
	s.Create("a", "p", "web")
	s.Create("b", "p", "web")
	s.Create("c", "p", "web")
	// touch "a" so it's most-recently-updated, "b" becomes least-recent
	require.NoError(t, s.Append("a", "user", "hi", nil))
	s.Create("d", "p", "web") // exceeds cap of 3, evicts least-recently-updated

	_, bOK := s.Get("b")
	assert.False(t, bOK, "b should have been evicted as least-recently-updated")

	for _, id := range []string{"a", "c", "d"} {
		_, ok := s.Get(id)
		assert.True(t, ok, "%s should survive eviction", id)
	}

	stats := s.Stats()
	assert.LessOrEqual(t, stats.Conversations, 3)
}

func TestContext_FormatsLastMessages(t *testing.T) {
	s := New()
	s.Create("c", "p", "web")
	require.NoError(t, s.Append("c", "user", "hello", nil))
	require.NoError(t, s.Append("c", "assistant", "hi there", nil))

	ctx, err := s.Context("c", 0)
	require.NoError(t, err)
	assert.Contains(t, ctx, "user: hello")
	assert.Contains(t, ctx, "assistant: hi there")
}

func TestSwitchPersona_AppendsSystemMessage(t *testing.T) {
	s := New()
	s.Create("c", "vanilla", "web")
	require.NoError(t, s.SwitchPersona("c", "grizzled-sysadmin"))

	conv, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "grizzled-sysadmin", conv.PersonaID)

	hist, err := s.History("c", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "system", hist[0].Role)
	assert.Contains(t, hist[0].Content, "vanilla")
	assert.Contains(t, hist[0].Content, "grizzled-sysadmin")
}

func TestSummaries_MostRecentlyUpdatedFirst(t *testing.T) {
	s := New()
	s.Create("a", "p", "web")
	s.Create("b", "p", "web")
	require.NoError(t, s.Append("a", "user", "hi", nil))

	summaries := s.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "a", summaries[0].ID)
}
