package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/skillbot/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	text := Text("hello")
	assert.True(t, text.OK())
	assert.Equal(t, "hello", text.Output())
	assert.False(t, text.IsArtifact())
	assert.Empty(t, text.Diagnostic())

	art := Artifact("/tmp/cat.png")
	assert.True(t, art.OK())
	assert.True(t, art.IsArtifact())
	assert.Equal(t, "/tmp/cat.png", art.ArtifactPath())
	assert.Empty(t, art.Output())

	fail := Failure("HTTP Error: 500, boom")
	assert.False(t, fail.OK())
	assert.Empty(t, fail.Output())
	assert.Empty(t, fail.ArtifactPath())
	assert.Equal(t, "HTTP Error: 500, boom", fail.Diagnostic())

	assert.Equal(t, "unknown error", Failure("").Diagnostic())
	assert.False(t, Result{}.OK())
}

func TestGuardedRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCalls int32
		wantDiag  string
	}{
		{
			name:      "server error is retried",
			err:       &StatusError{StatusCode: 503, Message: "overloaded"},
			wantCalls: 3,
			wantDiag:  "HTTP Error: 503, overloaded",
		},
		{
			name:      "rate limit is retried",
			err:       &openai.APIError{HTTPStatusCode: 429, Message: "slow down"},
			wantCalls: 3,
			wantDiag:  "HTTP Error: 429, slow down",
		},
		{
			name:      "client error is not retried",
			err:       &StatusError{StatusCode: 400, Code: "InvalidParameter", Message: "bad size"},
			wantCalls: 1,
			wantDiag:  "HTTP Error: 400, InvalidParameter, bad size",
		},
		{
			name:      "malformed payload is not retried",
			err:       ErrMalformedResponse,
			wantCalls: 1,
			wantDiag:  "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			gen := generatorFunc(func(context.Context, string, Params) (Result, error) {
				calls.Add(1)
				return Result{}, tt.err
			})
			g := newGuarded("test", gen, config.ProviderConfig{MaxRetries: 2, RetryDelay: time.Millisecond}, discardLogger())

			res := g.Invoke(context.Background(), "prompt", Params{})
			assert.False(t, res.OK())
			assert.Equal(t, tt.wantDiag, res.Diagnostic())
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGuardedSucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gen := generatorFunc(func(context.Context, string, Params) (Result, error) {
		if calls.Add(1) == 1 {
			return Result{}, &StatusError{StatusCode: 500}
		}
		return Text("ok"), nil
	})
	g := newGuarded("test", gen, config.ProviderConfig{MaxRetries: 1, RetryDelay: time.Millisecond}, discardLogger())

	res := g.Invoke(context.Background(), "prompt", Params{})
	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Output())
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuardedRecoversPanics(t *testing.T) {
	t.Parallel()

	gen := generatorFunc(func(context.Context, string, Params) (Result, error) {
		panic("nil map write")
	})
	g := newGuarded("test", gen, config.ProviderConfig{}, discardLogger())

	var res Result
	require.NotPanics(t, func() {
		res = g.Invoke(context.Background(), "prompt", Params{})
	})
	assert.False(t, res.OK())
	assert.Contains(t, res.Diagnostic(), "nil map write")
}

func TestGuardedTimeout(t *testing.T) {
	t.Parallel()

	gen := generatorFunc(func(ctx context.Context, _ string, _ Params) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	g := newGuarded("test", gen, config.ProviderConfig{Timeout: 20 * time.Millisecond}, discardLogger())

	res := g.Invoke(context.Background(), "prompt", Params{})
	assert.False(t, res.OK())
	assert.Equal(t, "request timed out", res.Diagnostic())
}

func TestGuardedDefaultsAttemptTimeout(t *testing.T) {
	t.Parallel()

	g := newGuarded("test", generatorFunc(nil), config.ProviderConfig{}, discardLogger())
	assert.Equal(t, config.DefaultProviderTimeout, g.timeout)
}

func TestGuardedTimeoutAppliesPerAttempt(t *testing.T) {
	t.Parallel()

	const attemptTimeout = 40 * time.Millisecond

	var calls atomic.Int32
	var firstDeadline, secondDeadline time.Time
	gen := generatorFunc(func(ctx context.Context, _ string, _ Params) (Result, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return Result{}, errors.New("attempt has no deadline")
		}
		if calls.Add(1) == 1 {
			firstDeadline = deadline
			<-ctx.Done()
			return Result{}, &StatusError{StatusCode: 504, Message: "gateway timeout"}
		}
		secondDeadline = deadline
		return Text("ok"), nil
	})
	cfg := config.ProviderConfig{Timeout: attemptTimeout, MaxRetries: 1, RetryDelay: time.Millisecond}
	g := newGuarded("test", gen, cfg, discardLogger())

	res := g.Invoke(context.Background(), "prompt", Params{})
	require.True(t, res.OK(), res.Diagnostic())
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, secondDeadline.After(firstDeadline), "each attempt gets a fresh deadline")
}

func TestGuardedBreakerOpens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gen := generatorFunc(func(context.Context, string, Params) (Result, error) {
		calls.Add(1)
		return Result{}, &StatusError{StatusCode: 502}
	})
	cfg := config.ProviderConfig{Breaker: config.BreakerConfig{MaxFailures: 2, Timeout: time.Minute}}
	g := newGuarded("test", gen, cfg, discardLogger())

	g.Invoke(context.Background(), "a", Params{})
	g.Invoke(context.Background(), "b", Params{})
	res := g.Invoke(context.Background(), "c", Params{})

	assert.False(t, res.OK())
	assert.Contains(t, res.Diagnostic(), "circuit open")
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the vendor")
}

func TestGuardedBreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gen := generatorFunc(func(context.Context, string, Params) (Result, error) {
		calls.Add(1)
		return Result{}, &StatusError{StatusCode: 400}
	})
	cfg := config.ProviderConfig{Breaker: config.BreakerConfig{MaxFailures: 1}}
	g := newGuarded("test", gen, cfg, discardLogger())

	for range 3 {
		g.Invoke(context.Background(), "x", Params{})
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: context.DeadlineExceeded, want: "request timed out"},
		{name: "wrapped deadline", err: errors.Join(errors.New("post"), context.DeadlineExceeded), want: "request timed out"},
		{name: "openai api error", err: &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"}, want: "HTTP Error: 401, invalid key"},
		{name: "status error without code", err: &StatusError{StatusCode: 500, Message: "oops"}, want: "HTTP Error: 500, oops"},
		{name: "local error", err: errors.New("dial tcp: connection refused"), want: "dial tcp: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}
