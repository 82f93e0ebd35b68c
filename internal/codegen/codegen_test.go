package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bk25/internal/llmdispatch"
)

func TestResolvePlatform_KeywordPrecedence(t *testing.T) {
	assert.Equal(t, PowerShell, ResolvePlatform(Auto, "configure Active Directory group policy"))
	assert.Equal(t, AppleScript, ResolvePlatform(Auto, "automate Finder on macOS"))
	assert.Equal(t, Bash, ResolvePlatform(Auto, "restart a systemctl service on linux"))
	assert.Equal(t, Bash, ResolvePlatform(Auto, "something with no recognizable keyword"))
	assert.Equal(t, PowerShell, ResolvePlatform(PowerShell, "anything"))
}

func TestResolvePlatform_NamedPatternFallback(t *testing.T) {
	assert.Equal(t, PowerShell, ResolvePlatform(Auto, "process and organize files in a folder"))
	assert.Equal(t, Bash, ResolvePlatform(Auto, "monitor cpu usage over time"))
}

func TestJaccardAndBestTemplate(t *testing.T) {
	tmpl, score, ok := bestTemplate(Bash, "monitor cpu memory and disk usage on this host")
	require.True(t, ok)
	assert.Greater(t, score, TemplateMatchThreshold)
	assert.Equal(t, "system_health_check", tmpl.Name)
}

func TestBasicSkeleton_CarriesVerbatimDescription(t *testing.T) {
	script := basicSkeleton(Bash, "a wildly specific one-off task")
	assert.Contains(t, script, "a wildly specific one-off task")
}

func TestValidate_EmptyScript(t *testing.T) {
	result := Validate(Bash, "   ")
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Issues, "script is empty")
}

func TestValidate_MissingErrorHandling(t *testing.T) {
	result := Validate(Bash, "echo hello world")
	assert.False(t, result.IsValid)
	found := false
	for _, issue := range result.Issues {
		if issue == "missing error-handling construct" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_DenylistedCommand(t *testing.T) {
	result := Validate(Bash, "set -euo pipefail\nrm -rf /tmp/stuff")
	assert.False(t, result.IsValid)
}

func TestValidate_CleanScriptIsValid(t *testing.T) {
	result := Validate(Bash, "set -euo pipefail\nls -la\necho done")
	assert.True(t, result.IsValid)
}

func TestStripMarkdownFencing(t *testing.T) {
	in := "```bash\necho hi\n```"
	assert.Equal(t, "echo hi", StripMarkdownFencing(in))
	assert.Equal(t, "echo hi", StripMarkdownFencing("echo hi"))
}

func TestInferFilename_FromFunctionName(t *testing.T) {
	script := "function Restart-MyService {\n    Write-Host 'hi'\n}"
	name := InferFilename(script, "some description", PowerShell)
	assert.Equal(t, "Restart-MyService.ps1", name)
}

func TestInferFilename_FromDescriptionSlug(t *testing.T) {
	name := InferFilename("echo hi", "Check Disk Space!!", Bash)
	assert.Equal(t, "check_disk_space.sh", name)
}

type fakeProvider struct {
	available bool
	content   string
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool  { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req llmdispatch.Request) (llmdispatch.Response, error) {
	return llmdispatch.Response{Success: true, Content: f.content, Metadata: map[string]any{}}, nil
}

func TestGenerate_UsesLLMWhenAvailable(t *testing.T) {
	provider := &fakeProvider{available: true, content: "set -euo pipefail\nls -la"}
	gen := New(llmdispatch.New("fake", provider))

	result := gen.Generate(context.Background(), Request{Description: "list files", Platform: Bash}, ComposeInput{})
	assert.Equal(t, MethodLLM, result.Metadata.GenerationMethod)
	assert.True(t, result.Success)
}

func TestGenerate_FallsBackToTemplateWhenLLMUnavailable(t *testing.T) {
	provider := &fakeProvider{available: false}
	gen := New(llmdispatch.New("fake", provider))

	result := gen.Generate(context.Background(), Request{
		Description: "monitor cpu memory and disk usage", Platform: Bash,
	}, ComposeInput{})
	assert.NotEqual(t, MethodLLM, result.Metadata.GenerationMethod)
}

func TestSuggestions_MatchesNamedPattern(t *testing.T) {
	gen := New(llmdispatch.New("", &fakeProvider{available: false}))
	suggestions := gen.Suggestions("I need a backup of this directory")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "backup_automation", suggestions[0].Pattern)
}
