package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bk25/internal/channel"
	"bk25/internal/codegen"
	"bk25/internal/conversation"
	"bk25/internal/llmdispatch"
	"bk25/internal/persona"
	"bk25/internal/policy"
	"bk25/internal/supervisor"
)

type fakeProvider struct {
	name      string
	available bool
	content   string
}

func (f *fakeProvider) Name() string                          { return f.name }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool   { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req llmdispatch.Request) (llmdispatch.Response, error) {
	return llmdispatch.Response{Success: true, Content: f.content, Metadata: map[string]any{}}, nil
}

func newTestCore(t *testing.T, content string, available bool) *Core {
	t.Helper()
	personas := persona.NewRegistry()
	require.NoError(t, personas.LoadAll(t.TempDir()))

	channels := channel.NewRegistry()
	convs := conversation.New()
	dispatcher := llmdispatch.New("fake", &fakeProvider{name: "fake", available: available, content: content})
	gen := codegen.New(dispatcher)
	sup := supervisor.New(supervisor.DefaultConfig())

	return New(personas, channels, convs, dispatcher, gen, sup)
}

func TestListPersonas_UnfilteredReturnsAll(t *testing.T) {
	c := newTestCore(t, "hi", true)
	personas := c.ListPersonas("")
	assert.NotEmpty(t, personas)
}

func TestSwitchPersona_UnknownReturnsNotFoundError(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.SwitchPersona("does-not-exist")
	require.Error(t, err)
	coreErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, coreErr.Kind)
}

func TestSwitchChannel_UnknownReturnsNotFoundError(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.SwitchChannel("pager")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, err.(*Error).Kind)
}

func TestSwitchChannel_KnownReturnsArtifactKinds(t *testing.T) {
	c := newTestCore(t, "hi", true)
	result, err := c.SwitchChannel("slack")
	require.NoError(t, err)
	assert.Equal(t, "slack", result.Channel.ID)
	assert.NotEmpty(t, result.ArtifactKinds)
}

func TestChat_EmptyMessageIsInvalidInput(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.Chat(context.Background(), "   ", "", "", "")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, err.(*Error).Kind)
}

func TestChat_LLMUnavailableSurfacesAsLLMUnavailable(t *testing.T) {
	c := newTestCore(t, "hi", false)
	_, err := c.Chat(context.Background(), "hello there", "", "", "")
	require.Error(t, err)
	assert.Equal(t, ErrLLMUnavailable, err.(*Error).Kind)
}

func TestChat_ExtractsFencedCodeBlockAndReplacesWithPlaceholder(t *testing.T) {
	reply := "Here you go:\n```bash\necho hello\n```\nLet me know if that works."
	c := newTestCore(t, reply, true)

	result, err := c.Chat(context.Background(), "write me a script", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, result.ExtractedCode)
	assert.Equal(t, "bash", result.ExtractedCode.Language)
	assert.Contains(t, result.ExtractedCode.Code, "echo hello")
	assert.Equal(t, "Generated Bash Script", result.ExtractedCode.Filename)
	assert.Contains(t, result.Response, "[generated script below]")
	assert.NotContains(t, result.Response, "echo hello")
}

func TestChat_NoCodeBlockLeavesExtractedCodeNil(t *testing.T) {
	c := newTestCore(t, "just a plain reply", true)
	result, err := c.Chat(context.Background(), "hello", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, result.ExtractedCode)
	assert.Equal(t, "just a plain reply", result.Response)
}

func TestChat_UnknownPersonaIsNotFound(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.Chat(context.Background(), "hello", "", "ghost-persona", "")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, err.(*Error).Kind)
}

func TestExecute_PolicyViolationMapsToPolicyViolationKind(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.Execute(context.Background(), supervisor.ExecutionRequest{Platform: policy.Bash, Script: "rm -rf /"})
	require.Error(t, err)
	assert.Equal(t, ErrPolicyViolation, err.(*Error).Kind)
}

func TestExecute_Success(t *testing.T) {
	c := newTestCore(t, "hi", true)
	result, err := c.Execute(context.Background(), supervisor.ExecutionRequest{Platform: policy.Bash, Script: "echo direct-facade"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "direct-facade")
}

func TestSubmitTaskAndTaskStatus(t *testing.T) {
	c := newTestCore(t, "hi", true)
	c.Start()
	defer c.Shutdown()

	id, err := c.SubmitTask(supervisor.TaskDescriptor{Platform: policy.Bash, Script: "echo submitted"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = c.TaskStatus(id)
	require.NoError(t, err)
}

func TestTaskStatus_UnknownIsNotFound(t *testing.T) {
	c := newTestCore(t, "hi", true)
	_, err := c.TaskStatus("missing-task")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, err.(*Error).Kind)
}

func TestLLMStatus_ReportsProviderAvailability(t *testing.T) {
	c := newTestCore(t, "hi", true)
	status := c.LLMStatus(context.Background())
	assert.True(t, status["fake"])
}

func TestReloadPersonas_Succeeds(t *testing.T) {
	c := newTestCore(t, "hi", true)
	require.NoError(t, c.ReloadPersonas())
}

func TestGenerateScript_FallsBackWhenLLMUnavailable(t *testing.T) {
	c := newTestCore(t, "hi", false)
	result, err := c.GenerateScript(context.Background(), "back up a directory nightly", codegen.Bash, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEqual(t, codegen.MethodLLM, result.Metadata.GenerationMethod)
}
