package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/skillbot/internal/config"
)

func newAdapter(t *testing.T, kind, baseURL, cacheDir string) Adapter {
	t.Helper()

	a, err := New(context.Background(), "test", config.ProviderConfig{
		Kind:       kind,
		BaseURL:    baseURL,
		APIKey:     "secret",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}, Options{CacheDir: cacheDir, Logger: discardLogger()})
	require.NoError(t, err)
	return a
}

func TestOpenAIChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "glm-4", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "what is go", req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"a language"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)

	// A full endpoint URL is accepted as base.
	a := newAdapter(t, config.KindOpenAIChat, srv.URL+"/v4/chat/completions", t.TempDir())
	res := a.Invoke(context.Background(), "what is go", Params{Model: "glm-4", MaxTokens: 100})

	require.True(t, res.OK(), res.Diagnostic())
	assert.Equal(t, "a language", res.Output())
}

func TestOpenAIChatVendorError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key","type":"auth_error"}}`)
	}))
	t.Cleanup(srv.Close)

	a := newAdapter(t, config.KindOpenAIChat, srv.URL, t.TempDir())
	res := a.Invoke(context.Background(), "hi", Params{Model: "qwen-max"})

	assert.False(t, res.OK())
	assert.Equal(t, "HTTP Error: 401, invalid api key", res.Diagnostic())
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","choices":[]}`)
	}))
	t.Cleanup(srv.Close)

	a := newAdapter(t, config.KindOpenAIChat, srv.URL, t.TempDir())
	res := a.Invoke(context.Background(), "hi", Params{Model: "m"})

	assert.False(t, res.OK())
	assert.Contains(t, res.Diagnostic(), "malformed response")
}

func TestOpenAICompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)

		var req struct {
			Prompt string `json:"prompt"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tell a joke", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"text_completion","choices":[{"index":0,"text":"knock knock"}]}`)
	}))
	t.Cleanup(srv.Close)

	a := newAdapter(t, config.KindOpenAICompletion, srv.URL+"/v1", t.TempDir())
	res := a.Invoke(context.Background(), "tell a joke", Params{Model: "moonshot-v1-8k"})

	require.True(t, res.OK(), res.Diagnostic())
	assert.Equal(t, "knock knock", res.Output())
}

// imageServer serves a vendor endpoint at /api and the generated image under
// /files/.
func imageServer(t *testing.T, api http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api", api)
	mux.HandleFunc("/files/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "PNGDATA")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDashScopeImageV1(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = imageServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
			Input struct {
				Prompt string `json:"prompt"`
			} `json:"input"`
			Parameters struct {
				Size     string  `json:"size"`
				Seed     int     `json:"seed"`
				Guidance float64 `json:"guidance"`
			} `json:"parameters"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "flux-schnell", req.Model)
		assert.Equal(t, "a cat", req.Input.Prompt)
		assert.Equal(t, "1024*1024", req.Parameters.Size)
		assert.Equal(t, 42, req.Parameters.Seed)
		assert.InDelta(t, 3.5, req.Parameters.Guidance, 0.001)

		_, _ = io.WriteString(w, `{"output":{"results":[{"url":"`+srv.URL+`/files/my%20cat.png?sig=1"}]}}`)
	})

	dir := t.TempDir()
	a := newAdapter(t, config.KindDashScopeImageV1, srv.URL+"/api", dir)
	res := a.Invoke(context.Background(), "a cat", Params{Model: "flux-schnell", Size: "1024*1024", Seed: 42, Guidance: 3.5})

	require.True(t, res.OK(), res.Diagnostic())
	require.True(t, res.IsArtifact())
	assert.Equal(t, filepath.Join(dir, "my cat.png"), res.ArtifactPath())
	assert.True(t, filepath.IsAbs(res.ArtifactPath()))

	data, err := os.ReadFile(res.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestDashScopeImageV2(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = imageServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input struct {
				Messages []struct {
					Role    string `json:"role"`
					Content []struct {
						Text string `json:"text"`
					} `json:"content"`
				} `json:"messages"`
			} `json:"input"`
			Parameters struct {
				NegativePrompt string `json:"negative_prompt"`
			} `json:"parameters"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Input.Messages, 1) && assert.Len(t, req.Input.Messages[0].Content, 1) {
			assert.Equal(t, "user", req.Input.Messages[0].Role)
			assert.Equal(t, "a dog", req.Input.Messages[0].Content[0].Text)
		}
		assert.Equal(t, "blurry", req.Parameters.NegativePrompt)

		_, _ = io.WriteString(w, `{"output":{"choices":[{"message":{"role":"assistant","content":[{"image":"`+srv.URL+`/files/dog.png"}]}}]}}`)
	})

	dir := t.TempDir()
	a := newAdapter(t, config.KindDashScopeImageV2, srv.URL+"/api", dir)
	res := a.Invoke(context.Background(), "a dog", Params{Model: "wan2.2", NegativePrompt: "blurry"})

	require.True(t, res.OK(), res.Diagnostic())
	assert.Equal(t, filepath.Join(dir, "dog.png"), res.ArtifactPath())
}

func TestDashScopeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantDiag string
	}{
		{
			name:     "vendor error",
			status:   http.StatusBadRequest,
			body:     `{"code":"DataInspectionFailed","message":"Input data may contain inappropriate content."}`,
			wantDiag: "HTTP Error: 400, DataInspectionFailed, Input data may contain inappropriate content.",
		},
		{
			name:     "ok without results",
			status:   http.StatusOK,
			body:     `{"output":{"results":[]}}`,
			wantDiag: "malformed response: no results returned",
		},
		{
			name:     "ok with broken json",
			status:   http.StatusOK,
			body:     `{"output":`,
			wantDiag: "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := imageServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			a := newAdapter(t, config.KindDashScopeImageV1, srv.URL+"/api", t.TempDir())
			res := a.Invoke(context.Background(), "x", Params{})

			assert.False(t, res.OK())
			assert.Contains(t, res.Diagnostic(), tt.wantDiag)
		})
	}
}

func TestDashScopeDownloadRetriedAlone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failures     int32
		wantOK       bool
		wantDownload int32
	}{
		{name: "recovers on second download", failures: 1, wantOK: true, wantDownload: 2},
		{name: "download keeps failing", failures: 100, wantOK: false, wantDownload: defaultDownloadAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var synth, downloads atomic.Int32
			mux := http.NewServeMux()
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			mux.HandleFunc("/api", func(w http.ResponseWriter, _ *http.Request) {
				synth.Add(1)
				_, _ = io.WriteString(w, `{"output":{"results":[{"url":"`+srv.URL+`/files/cat.png"}]}}`)
			})
			mux.HandleFunc("/files/", func(w http.ResponseWriter, _ *http.Request) {
				if downloads.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				_, _ = io.WriteString(w, "PNGDATA")
			})

			a := newAdapter(t, config.KindDashScopeImageV1, srv.URL+"/api", t.TempDir())
			res := a.Invoke(context.Background(), "a cat", Params{})

			assert.Equal(t, tt.wantOK, res.OK(), res.Diagnostic())
			assert.Equal(t, int32(1), synth.Load(), "generation is billed once")
			assert.Equal(t, tt.wantDownload, downloads.Load())
			if !tt.wantOK {
				assert.Contains(t, res.Diagnostic(), "HTTP Error: 503")
			}
		})
	}
}

func TestDownloaderSizeLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	d := &downloader{dir: dir, httpClient: srv.Client(), maxBytes: 4}
	_, err := d.fetch(context.Background(), srv.URL+"/big.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial download is removed")

	d.maxBytes = 10
	path, err := d.fetch(context.Background(), srv.URL+"/exact.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exact.png"), path)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "x", config.ProviderConfig{Kind: "carrier-pigeon"}, Options{Logger: discardLogger()})
	assert.Error(t, err)

	_, err = New(context.Background(), "x", config.ProviderConfig{Kind: config.KindDashScopeImageV1}, Options{Logger: discardLogger()})
	assert.Error(t, err, "image kinds need an endpoint")
}

func TestNewSetSharesAdapters(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Cache: config.CacheConfig{Dir: t.TempDir()},
		Providers: map[string]config.ProviderConfig{
			"zhipu":  {Kind: config.KindOpenAIChat, BaseURL: "https://example.com/v4", APIKey: "k"},
			"unused": {Kind: config.KindOpenAIChat, BaseURL: "https://example.com/v1", APIKey: "k"},
		},
		Skills: []config.SkillConfig{
			{Name: "glm", Command: "glm", Provider: "zhipu"},
			{Name: "glm-long", Command: "glml", Provider: "zhipu"},
		},
	}

	set, err := NewSet(context.Background(), cfg, Options{Logger: discardLogger()})
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Equal(t, "zhipu", set["zhipu"].Name())
}

func TestCacheFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"https://oss.example.com/a/b/1d2e.png?Expires=1", "1d2e.png"},
		{"https://oss.example.com/a/%E7%8C%AB.png", "猫.png"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, cacheFileName(u))
	}

	u, err := url.Parse("https://oss.example.com/")
	require.NoError(t, err)
	assert.Contains(t, cacheFileName(u), ".png")
}
