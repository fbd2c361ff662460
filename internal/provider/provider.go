// Package provider adapts generative AI vendors to a single call shape. Every
// adapter turns a prompt into a Result and never returns an error or panics
// to its caller.
package provider

import (
	"context"
	"errors"

	"github.com/edgard/skillbot/internal/config"
)

// ErrMalformedResponse is returned when a vendor answers 200 but the payload
// does not carry the expected output.
var ErrMalformedResponse = errors.New("malformed response")

// Adapter invokes one vendor.
type Adapter interface {
	// Name returns the configured provider name.
	Name() string
	// Invoke runs the prompt. Failures are reported in the Result.
	Invoke(ctx context.Context, prompt string, params Params) Result
}

// Params are the per-skill model parameters passed with each prompt. Zero
// values mean "vendor default".
type Params struct {
	Model          string
	MaxTokens      int
	Temperature    float32
	Size           string
	Seed           int
	Guidance       float64
	NegativePrompt string
}

// ParamsFromSkill extracts the model parameters of a skill.
func ParamsFromSkill(s config.SkillConfig) Params {
	return Params{
		Model:          s.Model,
		MaxTokens:      s.MaxTokens,
		Temperature:    s.Temperature,
		Size:           s.Size,
		Seed:           s.Seed,
		Guidance:       s.Guidance,
		NegativePrompt: s.NegativePrompt,
	}
}

// Result is the outcome of an invocation. A successful Result holds either
// text or the path of a saved artifact; a failed one holds a diagnostic.
// Use the constructors; the zero value is a failure with no diagnostic.
type Result struct {
	ok         bool
	text       string
	artifact   string
	diagnostic string
}

// Text returns a successful text result.
func Text(text string) Result {
	return Result{ok: true, text: text}
}

// Artifact returns a successful result pointing at a saved file.
func Artifact(path string) Result {
	return Result{ok: true, artifact: path}
}

// Failure returns a failed result carrying a human-readable diagnostic.
func Failure(diagnostic string) Result {
	if diagnostic == "" {
		diagnostic = "unknown error"
	}
	return Result{diagnostic: diagnostic}
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.ok }

// Output returns the generated text, if any.
func (r Result) Output() string { return r.text }

// ArtifactPath returns the absolute path of the generated file, if any.
func (r Result) ArtifactPath() string { return r.artifact }

// IsArtifact reports whether the success carries a file instead of text.
func (r Result) IsArtifact() bool { return r.ok && r.artifact != "" }

// Diagnostic returns the failure description. It is empty on success.
func (r Result) Diagnostic() string { return r.diagnostic }

// generator performs the raw vendor call. Errors are mapped to diagnostics by
// the guard that wraps it.
type generator interface {
	generate(ctx context.Context, prompt string, params Params) (Result, error)
}

// generatorFunc adapts a function to generator.
type generatorFunc func(ctx context.Context, prompt string, params Params) (Result, error)

func (f generatorFunc) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	return f(ctx, prompt, params)
}
