package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bk25/internal/channel"
)

func TestGenerate_SlackBlocks(t *testing.T) {
	reg := channel.NewRegistry()
	slack, ok := reg.Get("slack")
	require.True(t, ok)

	env, err := Generate(slack, "blocks", "hello world", Options{ShowHeader: true, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "slack", env.Channel)
	assert.Equal(t, "blocks", env.ArtifactType)
	artifact, ok := env.Artifact.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, artifact["blocks"])
}

func TestGenerate_UnsupportedKind(t *testing.T) {
	reg := channel.NewRegistry()
	web, ok := reg.Get("web")
	require.True(t, ok)

	_, err := Generate(web, "blocks", "x", Options{})
	assert.Error(t, err)
}

func TestGenerate_AllChannelsDefaultKind(t *testing.T) {
	reg := channel.NewRegistry()
	for _, ch := range reg.List() {
		require.NotEmpty(t, ch.ArtifactKinds)
		env, err := Generate(ch, ch.ArtifactKinds[0], "desc", Options{Text: "body"})
		require.NoError(t, err, ch.ID)
		assert.Equal(t, ch.ID, env.Channel)
		assert.NotNil(t, env.Artifact)
	}
}
