package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/prompts/pezzo"
)

type fakeClient struct {
	value json.RawMessage
	err   error
	names []string
}

func (f *fakeClient) GetPrompt(_ context.Context, name string) (json.RawMessage, error) {
	f.names = append(f.names, name)
	return f.value, f.err
}

type recordingFactory struct {
	client  *fakeClient
	configs []pezzo.Config
}

func (r *recordingFactory) build(cfg pezzo.Config, _ *slog.Logger) (Client, error) {
	r.configs = append(r.configs, cfg)
	return r.client, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memCache) Close() error { return nil }

func TestFetchWithoutCredentialsWarnsAndSkipsCall(t *testing.T) {
	cases := []Request{
		{APIKey: "", ProjectID: "proj"},
		{APIKey: "key", ProjectID: ""},
		{APIKey: "  ", ProjectID: "  "},
	}
	for _, req := range cases {
		rf := &recordingFactory{client: &fakeClient{value: json.RawMessage(`{}`)}}
		f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build))

		_, err := f.Fetch(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrConfigMissing))
		assert.Equal(t, common.SeverityWarning, common.SeverityOf(err))
		assert.Equal(t, MissingCredentialsMessage, common.UserMessage(err))
		assert.Empty(t, rf.configs)
		assert.Empty(t, rf.client.names)
	}
}

func TestFetchReturnsClientValueVerbatim(t *testing.T) {
	want := json.RawMessage(`{"content":"Hello {{name}}","settings":{"model":"gpt-4o"},"metadata":{"version":3}}`)
	rf := &recordingFactory{client: &fakeClient{value: want}}
	f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build))

	p, err := f.Fetch(context.Background(), Request{APIKey: "key", ProjectID: "proj", Environment: "Development", Name: "greeting"})
	require.NoError(t, err)
	assert.Equal(t, string(want), string(p.Raw))
	assert.Equal(t, "greeting", p.Name)
	assert.Equal(t, "Development", p.Environment)
	assert.Equal(t, "remote", p.Source)
	assert.Equal(t, []string{"greeting"}, rf.client.names)

	require.Len(t, rf.configs, 1)
	assert.Equal(t, "key", rf.configs[0].APIKey)
	assert.Equal(t, "proj", rf.configs[0].ProjectID)
	assert.Equal(t, "Development", rf.configs[0].Environment)
}

func TestFetchAppliesDefaults(t *testing.T) {
	rf := &recordingFactory{client: &fakeClient{value: json.RawMessage(`{}`)}}
	f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build))

	_, err := f.Fetch(context.Background(), Request{APIKey: "key", ProjectID: "proj"})
	require.NoError(t, err)
	require.Len(t, rf.configs, 1)
	assert.Equal(t, constants.DefaultPezzoServerURL, rf.configs[0].ServerURL)
	assert.Equal(t, string(constants.EnvironmentProduction), rf.configs[0].Environment)
	assert.Equal(t, []string{constants.DefaultPromptName}, rf.client.names)
}

func TestResolveAndDefaults(t *testing.T) {
	f := NewFetcher(common.PezzoConfig{APIKey: "cfg-key", ProjectID: "cfg-proj", ServerURL: "https://prompts.internal"}, nil)

	d := f.Defaults()
	assert.Equal(t, "cfg-key", d.APIKey)
	assert.Equal(t, "cfg-proj", d.ProjectID)
	assert.Equal(t, "https://prompts.internal", d.ServerURL)
	assert.Equal(t, "Production", d.Environment)
	assert.Equal(t, "sample", d.Name)

	r := f.Resolve(Request{ProjectID: "mine", Environment: "Development"})
	assert.Empty(t, r.APIKey)
	assert.Equal(t, "mine", r.ProjectID)
	assert.Equal(t, "Development", r.Environment)
	assert.Equal(t, "https://prompts.internal", r.ServerURL)
}

func TestClearedCredentialsDoNotFallBackToConfig(t *testing.T) {
	rf := &recordingFactory{client: &fakeClient{value: json.RawMessage(`{}`)}}
	f := NewFetcher(common.PezzoConfig{APIKey: "cfg-key", ProjectID: "cfg-proj"}, nil, WithClientFactory(rf.build))

	_, err := f.Fetch(context.Background(), Request{ProjectID: "cfg-proj"})
	assert.True(t, errors.Is(err, common.ErrConfigMissing))
	assert.Empty(t, rf.configs)
}

func TestFetchRejectsBadInput(t *testing.T) {
	rf := &recordingFactory{client: &fakeClient{}}
	f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build))

	_, err := f.Fetch(context.Background(), Request{APIKey: "k", ProjectID: "p", Environment: "Staging"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = f.Fetch(context.Background(), Request{APIKey: "k", ProjectID: "p", ServerURL: "ftp://x"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Empty(t, rf.configs)
}

func TestFetchWrapsClientFailure(t *testing.T) {
	rf := &recordingFactory{client: &fakeClient{err: errors.New("prompt not found")}}
	f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build))

	_, err := f.Fetch(context.Background(), Request{APIKey: "k", ProjectID: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrBackendCall))
	assert.Equal(t, common.SeverityError, common.SeverityOf(err))
	assert.Contains(t, err.Error(), "prompt not found")
}

func TestFetchUsesCache(t *testing.T) {
	rf := &recordingFactory{client: &fakeClient{value: json.RawMessage(`{"content":"x"}`)}}
	cache := &memCache{}
	f := NewFetcher(common.PezzoConfig{}, nil, WithClientFactory(rf.build), WithCache(cache, time.Minute))

	req := Request{APIKey: "k", ProjectID: "p", Name: "greeting"}
	first, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "remote", first.Source)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, string(first.Raw), string(second.Raw))
	assert.Len(t, rf.client.names, 1)
	assert.Equal(t, 1, cache.sets)

	// a different key must not be served from another caller's entry
	_, err = f.Fetch(context.Background(), Request{APIKey: "other", ProjectID: "p", Name: "greeting"})
	require.NoError(t, err)
	assert.Len(t, rf.client.names, 2)
}

func TestCacheKeyDependsOnEveryField(t *testing.T) {
	base := Request{APIKey: "k", ProjectID: "p", ServerURL: "https://a", Environment: "Production", Name: "n"}
	seen := map[string]bool{cacheKey(base): true}
	for _, mut := range []func(*Request){
		func(r *Request) { r.APIKey = "k2" },
		func(r *Request) { r.ProjectID = "p2" },
		func(r *Request) { r.ServerURL = "https://b" },
		func(r *Request) { r.Environment = "Development" },
		func(r *Request) { r.Name = "m" },
	} {
		r := base
		mut(&r)
		k := cacheKey(r)
		assert.False(t, seen[k])
		seen[k] = true
	}
}
