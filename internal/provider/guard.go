package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"

	"github.com/edgard/skillbot/internal/config"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// StatusError is a non-2xx answer from a vendor HTTP endpoint.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	parts := []string{fmt.Sprintf("HTTP Error: %d", e.StatusCode)}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ", ")
}

// guarded wraps a generator with a per-attempt deadline, retries on transient
// errors, a circuit breaker and panic recovery.
type guarded struct {
	name       string
	gen        generator
	breaker    *gobreaker.CircuitBreaker[Result]
	timeout    time.Duration
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

func newGuarded(name string, gen generator, cfg config.ProviderConfig, logger *slog.Logger) *guarded {
	logger = logger.With("component", "provider", "provider", name)

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Breaker.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Breaker.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	breaker := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "provider:" + name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Only vendor-side trouble counts against the breaker. A rejected
		// prompt or a cancelled request says nothing about vendor health.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
	})

	attemptTimeout := cfg.Timeout
	if attemptTimeout <= 0 {
		attemptTimeout = config.DefaultProviderTimeout
	}

	return &guarded{
		name:       name,
		gen:        gen,
		breaker:    breaker,
		timeout:    attemptTimeout,
		attempts:   cfg.MaxRetries + 1,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

func (g *guarded) Name() string { return g.name }

func (g *guarded) Invoke(ctx context.Context, prompt string, params Params) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "Provider panicked", "panic", r, "stack", string(debug.Stack()))
			res = Failure(fmt.Sprintf("internal error: %v", r))
		}
	}()

	start := time.Now()
	out, err := retry.DoWithData(
		func() (Result, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return g.breaker.Execute(func() (Result, error) {
				return g.gen.generate(attemptCtx, prompt, params)
			})
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.WarnContext(ctx, "Retrying provider call", "attempt", n+1, "max_attempts", g.attempts, "error", err)
		}),
	)
	if err != nil {
		diag := Describe(err)
		g.logger.ErrorContext(ctx, "Provider call failed", "model", params.Model, "duration", time.Since(start), "diagnostic", diag, "error", err)
		return Failure(diag)
	}

	g.logger.DebugContext(ctx, "Provider call succeeded", "model", params.Model, "duration", time.Since(start))
	return out
}

// isTransient reports whether err is worth retrying: rate limits, vendor
// 5xx answers and network errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return false
	}

	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusCode extracts the HTTP status carried by a vendor error.
func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	var genaiErr *genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	return 0, false
}

// Describe renders err as the diagnostic shown to users: the HTTP status and
// vendor message for vendor errors, the local error text otherwise.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "provider temporarily unavailable (circuit open)"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP Error: %d, %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return reqErr.Error()
		}
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return fmt.Sprintf("HTTP Error: %d, %s", reqErr.HTTPStatusCode, msg)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	var genaiErr *genai.APIError
	if errors.As(err, &genaiErr) {
		return fmt.Sprintf("HTTP Error: %d, %s", genaiErr.Code, genaiErr.Message)
	}

	return err.Error()
}
