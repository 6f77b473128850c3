package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

func ptr(f float64) *float64 { return &f }

// fakeLister serves a fixed listing, or err when set.
type fakeLister struct {
	mu     sync.Mutex
	models []openrouter.Model
	err    error
	calls  atomic.Int32

	// block, when non-nil, holds ListModels until closed.
	block chan struct{}
}

func (f *fakeLister) ListModels(ctx context.Context) ([]openrouter.Model, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *fakeLister) set(models []openrouter.Model, err error) {
	f.mu.Lock()
	f.models, f.err = models, err
	f.mu.Unlock()
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(l Lister, ttl time.Duration) (*Cache, *clock) {
	c := NewCache(l, ttl, nil)
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func sampleModels() []openrouter.Model {
	return []openrouter.Model{
		{ID: "openai/gpt-4o", Description: "Omni model", ContextLength: 128000, PromptPrice: ptr(0.0000025), CompletionPrice: ptr(0.00001),
			InputModalities: []string{"text", "image"}, SupportedParameters: []string{"tools", "response_format"}},
		{ID: "meta-llama/llama-3.3-70b-instruct:free", Description: "Llama", ContextLength: 65536, PromptPrice: ptr(0), CompletionPrice: ptr(0),
			SupportedParameters: []string{"tools"}},
		{ID: "google/gemini-2.0-flash-exp:free", Description: "Gemini flash", ContextLength: 1048576, PromptPrice: ptr(0), CompletionPrice: ptr(0),
			InputModalities: []string{"text", "image"}},
		{ID: "mystery/router", Description: "Auto router", ContextLength: 0},
	}
}

func TestFromAPI(t *testing.T) {
	d := FromAPI(sampleModels()[0])
	assert.Equal(t, "openai", d.Provider)
	assert.True(t, d.Capabilities.Tools)
	assert.True(t, d.Capabilities.Functions)
	assert.True(t, d.Capabilities.Vision)
	assert.True(t, d.Capabilities.JSONMode)

	d = FromAPI(openrouter.Model{ID: "noslash"})
	assert.Empty(t, d.Provider)
	assert.False(t, d.Capabilities.Vision)
}

func TestCache_RefreshOnlyWhenEmptyOrExpired(t *testing.T) {
	l := &fakeLister{models: sampleModels()}
	c, clk := newTestCache(l, time.Minute)
	ctx := context.Background()

	_, err := c.Models(ctx)
	require.NoError(t, err)
	_, err = c.Models(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, l.calls.Load(), "second read within TTL must hit the cache")

	clk.advance(59 * time.Second)
	_, _ = c.Models(ctx)
	assert.EqualValues(t, 1, l.calls.Load())

	clk.advance(2 * time.Second)
	_, _ = c.Models(ctx)
	assert.EqualValues(t, 2, l.calls.Load(), "expired cache must refresh")
}

func TestCache_FetchErrorWithoutCache(t *testing.T) {
	l := &fakeLister{err: errors.New("boom")}
	c, _ := newTestCache(l, time.Minute)

	_, err := c.Models(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = c.IsValid(context.Background(), "openai/gpt-4o")
	assert.Error(t, err)
}

func TestCache_ServesStaleOnRefreshFailure(t *testing.T) {
	l := &fakeLister{models: sampleModels()}
	c, clk := newTestCache(l, time.Minute)
	ctx := context.Background()

	_, err := c.Models(ctx)
	require.NoError(t, err)

	l.set(nil, errors.New("upstream down"))
	clk.advance(time.Hour)

	models, err := c.Models(ctx)
	require.NoError(t, err)
	assert.Len(t, models, 4)

	ok, err := c.IsValid(ctx, "openai/gpt-4o")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_IsValid(t *testing.T) {
	c, _ := newTestCache(&fakeLister{models: sampleModels()}, time.Minute)
	ctx := context.Background()

	ok, err := c.IsValid(ctx, "openai/gpt-4o")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsValid(ctx, "openai/gpt-4")
	require.NoError(t, err)
	assert.False(t, ok, "prefix of a real id is not a match")

	ok, err = c.IsValid(ctx, "fabricated/model-9000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_IsValidDuringPendingRefresh(t *testing.T) {
	l := &fakeLister{models: sampleModels()}
	c, _ := newTestCache(l, time.Minute)
	ctx := context.Background()

	_, err := c.Models(ctx)
	require.NoError(t, err)

	c.Invalidate()
	l.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Models(ctx)
	}()

	require.Eventually(t, func() bool { return l.calls.Load() == 2 }, time.Second, time.Millisecond)

	ok, err := c.IsValid(ctx, "openai/gpt-4o")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsValid(ctx, "fabricated/model")
	require.NoError(t, err)
	assert.False(t, ok)

	close(l.block)
	<-done
	assert.EqualValues(t, 2, l.calls.Load())
}

func TestCache_GetByIDAndModelsAreCopies(t *testing.T) {
	c, _ := newTestCache(&fakeLister{models: sampleModels()}, time.Minute)
	ctx := context.Background()

	d, ok, err := c.GetByID(ctx, "google/gemini-2.0-flash-exp:free")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1048576, d.ContextLength)

	models, _ := c.Models(ctx)
	models[0].ID = "mutated"
	again, _ := c.Models(ctx)
	assert.Equal(t, "openai/gpt-4o", again[0].ID)
}

func TestFilter(t *testing.T) {
	var models []Descriptor
	for _, m := range sampleModels() {
		models = append(models, FromAPI(m))
	}

	ids := func(ds []Descriptor) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"no filters", Filters{}, []string{"openai/gpt-4o", "meta-llama/llama-3.3-70b-instruct:free", "google/gemini-2.0-flash-exp:free", "mystery/router"}},
		{"query matches description case-insensitively", Filters{Query: "FLASH"}, []string{"google/gemini-2.0-flash-exp:free"}},
		{"query matches provider", Filters{Query: "meta-llama"}, []string{"meta-llama/llama-3.3-70b-instruct:free"}},
		{"provider exact", Filters{Provider: "openai"}, []string{"openai/gpt-4o"}},
		{"provider is not a substring match", Filters{Provider: "open"}, nil},
		{"min context inclusive", Filters{MinContextLength: 128000}, []string{"openai/gpt-4o", "google/gemini-2.0-flash-exp:free"}},
		{"max context inclusive", Filters{MaxContextLength: 65536}, []string{"meta-llama/llama-3.3-70b-instruct:free", "mystery/router"}},
		{"zero prompt price excludes paid and unknown", Filters{MaxPromptPrice: ptr(0)}, []string{"meta-llama/llama-3.3-70b-instruct:free", "google/gemini-2.0-flash-exp:free"}},
		{"completion price bound", Filters{MaxCompletionPrice: ptr(0.00001)}, []string{"openai/gpt-4o", "meta-llama/llama-3.3-70b-instruct:free", "google/gemini-2.0-flash-exp:free"}},
		{"vision", Filters{Capabilities: Capabilities{Vision: true}}, []string{"openai/gpt-4o", "google/gemini-2.0-flash-exp:free"}},
		{"vision and tools", Filters{Capabilities: Capabilities{Vision: true, Tools: true}}, []string{"openai/gpt-4o"}},
		{"limit", Filters{Limit: 2}, []string{"openai/gpt-4o", "meta-llama/llama-3.3-70b-instruct:free"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(models, tt.f)))
		})
	}
}

func TestFilter_LimitCeiling(t *testing.T) {
	models := make([]Descriptor, 80)
	for i := range models {
		models[i] = Descriptor{ID: "p/m"}
	}
	assert.Len(t, Filter(models, Filters{Limit: 500}), MaxSearchLimit)
	assert.Len(t, Filter(models, Filters{}), DefaultSearchLimit)
}

func TestSearch_UsesCache(t *testing.T) {
	l := &fakeLister{models: sampleModels()}
	c, _ := newTestCache(l, time.Minute)

	got, err := c.Search(context.Background(), Filters{Query: "gpt"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "openai/gpt-4o", got[0].ID)
}

type staticSource struct {
	models []Descriptor
	err    error
}

func (s staticSource) Models(context.Context) ([]Descriptor, error) { return s.models, s.err }

func TestSelectFreeModel(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		src  staticSource
		want string
	}{
		{"largest context wins", staticSource{models: []Descriptor{
			{ID: "a/small:free", ContextLength: 8000},
			{ID: "b/big:free", ContextLength: 200000},
			{ID: "c/paid", ContextLength: 1000000},
		}}, "b/big:free"},
		{"ties go to first seen", staticSource{models: []Descriptor{
			{ID: "a/first:free", ContextLength: 32000},
			{ID: "b/second:free", ContextLength: 32000},
		}}, "a/first:free"},
		{"unknown context still selectable", staticSource{models: []Descriptor{{ID: "a/only:free"}}}, "a/only:free"},
		{"no free models", staticSource{models: []Descriptor{{ID: "c/paid", ContextLength: 9}}}, FallbackFreeModel},
		{"empty catalog", staticSource{}, FallbackFreeModel},
		{"catalog error", staticSource{err: errors.New("down")}, FallbackFreeModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectFreeModel(ctx, tt.src))
		})
	}
}

func TestSelectFreeModel_FromCache(t *testing.T) {
	c, _ := newTestCache(&fakeLister{models: sampleModels()}, time.Minute)
	assert.Equal(t, "google/gemini-2.0-flash-exp:free", SelectFreeModel(context.Background(), c))
}
