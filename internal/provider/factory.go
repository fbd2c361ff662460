package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/edgard/skillbot/internal/config"
)

// Connection pool settings shared by all vendor clients.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 120 * time.Second
	defaultDialTimeout         = 30 * time.Second
)

// NewHTTPClient returns a pooled client for vendor calls. Request deadlines
// come from the caller's context, so the client itself has no timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Options carries what adapters share across providers.
type Options struct {
	// CacheDir receives downloaded images.
	CacheDir string
	// MaxImageBytes caps one downloaded image; zero means unlimited.
	MaxImageBytes int64
	// HTTPClient is used for vendor calls and downloads. NewHTTPClient is
	// used when nil.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New builds the adapter for the named provider.
func New(ctx context.Context, name string, cfg config.ProviderConfig, opts Options) (Adapter, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var gen generator
	switch cfg.Kind {
	case config.KindOpenAIChat:
		gen = &chatGenerator{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL, opts.HTTPClient)}
	case config.KindOpenAICompletion:
		gen = &completionGenerator{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL, opts.HTTPClient)}
	case config.KindDashScopeImageV1, config.KindDashScopeImageV2:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %q: base_url is required for %s", name, cfg.Kind)
		}
		client := &dashScopeClient{
			endpoint:   cfg.BaseURL,
			apiKey:     cfg.APIKey,
			httpClient: opts.HTTPClient,
			downloader: &downloader{dir: opts.CacheDir, httpClient: opts.HTTPClient, maxBytes: opts.MaxImageBytes},
		}
		if cfg.Kind == config.KindDashScopeImageV1 {
			gen = &imageV1Generator{client}
		} else {
			gen = &imageV2Generator{client}
		}
	case config.KindGemini:
		g, err := newGeminiGenerator(ctx, cfg.APIKey, cfg.BaseURL, opts.HTTPClient)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		gen = g
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", name, cfg.Kind)
	}

	opts.Logger.Info("Provider initialized", "provider", name, "kind", cfg.Kind)
	return newGuarded(name, gen, cfg, opts.Logger), nil
}

// NewSet builds adapters for every provider referenced by a skill.
func NewSet(ctx context.Context, cfg *config.Config, opts Options) (map[string]Adapter, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient()
	}
	if opts.CacheDir == "" {
		opts.CacheDir = cfg.Cache.Dir
	}
	if opts.MaxImageBytes == 0 {
		opts.MaxImageBytes = cfg.Cache.MaxImageBytes
	}

	adapters := make(map[string]Adapter)
	for _, skill := range cfg.Skills {
		if _, ok := adapters[skill.Provider]; ok {
			continue
		}
		pc, ok := cfg.Providers[skill.Provider]
		if !ok {
			return nil, fmt.Errorf("skill %q references unknown provider %q", skill.Name, skill.Provider)
		}
		a, err := New(ctx, skill.Provider, pc, opts)
		if err != nil {
			return nil, err
		}
		adapters[skill.Provider] = a
	}
	return adapters, nil
}
