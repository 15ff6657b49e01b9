package engine

import (
	"context"
	"errors"
)

// Kind selects the prompt used for a translation call.
type Kind string

const (
	KindTitle   Kind = "title"
	KindContent Kind = "content"
)

// Result carries one engine completion. Tokens is the metered usage for
// AI engines; Characters for character-metered ones.
type Result struct {
	Text       string
	Tokens     int
	Characters int
}

// TranslateOptions parameterize one Translate call. TitleContext is sent
// as an extra user message on content calls so the engine sees what
// article a paragraph belongs to.
type TranslateOptions struct {
	TargetLanguage string
	SourceLanguage string // "auto" when unknown
	Kind           Kind
	TitleContext   string
}

// Engine is a remote translator/summarizer. Implementations capture their
// own failures and surface them as an empty Result text with zero
// metering; they never return errors to the pipeline.
type Engine interface {
	Name() string
	Translate(ctx context.Context, text string, opts TranslateOptions) Result
	Summarize(ctx context.Context, text, targetLanguage string) Result
	// MaxSize is the input budget per call, in whichever unit the engine
	// meters (tokens for AI, characters otherwise).
	MaxSize() int
	MetersTokens() bool
	// Validate performs a round-trip probe against the remote API.
	Validate(ctx context.Context) error
}

var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrMissingAPIKey   = errors.New("API key is required")
	ErrMissingBaseURL  = errors.New("base URL is required for compatible provider")
	ErrMissingModel    = errors.New("model is required")
)
