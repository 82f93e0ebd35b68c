package llmdispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	name      string
	available bool
	content   string
	err       error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Success: true, Content: f.content, Metadata: map[string]any{}}, nil
}

func TestGenerate_PreferredProviderUsedWhenAvailable(t *testing.T) {
	p1 := &fakeProvider{name: "ollama", available: true, content: "from ollama"}
	p2 := &fakeProvider{name: "openai", available: true, content: "from openai"}
	d := New("openai", p1, p2)

	resp := d.Generate(context.Background(), Request{Prompt: "hi"})
	assert.True(t, resp.Success)
	assert.Equal(t, "from openai", resp.Content)
	assert.Equal(t, "openai", resp.Metadata["provider"])
}

func TestGenerate_FallsBackToFirstAvailableWhenPreferredDown(t *testing.T) {
	p1 := &fakeProvider{name: "ollama", available: true, content: "from ollama"}
	p2 := &fakeProvider{name: "openai", available: false}
	d := New("openai", p1, p2)

	resp := d.Generate(context.Background(), Request{Prompt: "hi"})
	assert.True(t, resp.Success)
	assert.Equal(t, "from ollama", resp.Content)
}

func TestGenerate_NoProvidersAvailable(t *testing.T) {
	p1 := &fakeProvider{name: "ollama", available: false}
	d := New("", p1)

	resp := d.Generate(context.Background(), Request{Prompt: "hi"})
	assert.False(t, resp.Success)
	assert.Equal(t, "no providers available", resp.Error)
}

func TestGenerate_ProviderErrorSurfacesAsFailure(t *testing.T) {
	p1 := &fakeProvider{name: "ollama", available: true, err: errors.New("boom")}
	d := New("", p1)

	resp := d.Generate(context.Background(), Request{Prompt: "hi"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
}

func TestProbe_ReportsPerProviderAvailability(t *testing.T) {
	p1 := &fakeProvider{name: "ollama", available: true}
	p2 := &fakeProvider{name: "openai", available: false}
	d := New("", p1, p2)

	result := d.Probe(context.Background())
	assert.Equal(t, map[string]bool{"ollama": true, "openai": false}, result)
}
