package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePersonaFile(t *testing.T, dir, name string, fields map[string]any) {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoadAll_ValidAndInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writePersonaFile(t, dir, "vanilla.json", map[string]any{
		"id": "vanilla", "name": "Vanilla", "description": "d", "greeting": "hi",
		"systemPrompt": "You are vanilla.",
	})
	writePersonaFile(t, dir, "broken.json", map[string]any{
		"id": "broken", "name": "Broken",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notjson.txt"), []byte("ignored"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "vanilla", list[0].ID)

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "vanilla", cur.ID)
}

func TestLoadAll_EmptyDirSynthesizesFallback(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	cur, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "fallback", cur.ID)
	assert.NotEmpty(t, cur.SystemPrompt)
}

func TestPersonaUniqueness(t *testing.T) {
	dir := t.TempDir()
	writePersonaFile(t, dir, "a.json", map[string]any{
		"id": "a", "name": "A", "description": "d", "greeting": "hi", "systemPrompt": "sp",
	})
	writePersonaFile(t, dir, "b.json", map[string]any{
		"id": "b", "name": "B", "description": "d", "greeting": "hi", "systemPrompt": "sp",
	})
	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	seen := map[string]bool{}
	for _, p := range r.List() {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, len(r.List()))
}

func TestSwitch_UnknownIDIsNoOp(t *testing.T) {
	dir := t.TempDir()
	writePersonaFile(t, dir, "a.json", map[string]any{
		"id": "a", "name": "A", "description": "d", "greeting": "hi", "systemPrompt": "sp",
	})
	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	before, _ := r.Current()
	_, ok := r.Switch("does-not-exist")
	assert.False(t, ok)
	after, _ := r.Current()
	assert.Equal(t, before.ID, after.ID)
}

func TestListForChannel_EmptyChannelsEligibleEverywhere(t *testing.T) {
	dir := t.TempDir()
	writePersonaFile(t, dir, "a.json", map[string]any{
		"id": "a", "name": "A", "description": "d", "greeting": "hi", "systemPrompt": "sp",
	})
	writePersonaFile(t, dir, "slackonly.json", map[string]any{
		"id": "slackonly", "name": "S", "description": "d", "greeting": "hi", "systemPrompt": "sp",
		"channels": []string{"slack"},
	})
	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	web := r.ListForChannel("web")
	var ids []string
	for _, p := range web {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "a")
	assert.NotContains(t, ids, "slackonly")

	slack := r.ListForChannel("slack")
	ids = nil
	for _, p := range slack {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "slackonly")
}

func TestAddCustom_DuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadAll(t.TempDir()))
	_, err := r.AddCustom(Persona{ID: "fallback", Name: "n", Description: "d", Greeting: "g", SystemPrompt: "sp"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestBuildPrompt_ContainsSystemPromptAndEndsWithSuffix(t *testing.T) {
	dir := t.TempDir()
	writePersonaFile(t, dir, "a.json", map[string]any{
		"id": "a", "name": "A", "description": "d", "greeting": "hi", "systemPrompt": "SYS-PROMPT-X",
	})
	r := NewRegistry()
	require.NoError(t, r.LoadAll(dir))

	history := []HistoryMessage{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi there"}}
	out := r.BuildPrompt("what's up", history)

	assert.Contains(t, out, "SYS-PROMPT-X")
	assert.Contains(t, out, "user: hello")
	assert.True(t, len(out) > 0)
	assert.Contains(t, out, "User: what's up\nAssistant:")
}

func TestBuildPrompt_NoPersonaIsJustSuffix(t *testing.T) {
	r := NewRegistry()
	out := r.BuildPrompt("hi", nil)
	assert.Equal(t, "User: hi\nAssistant:", out)
}
