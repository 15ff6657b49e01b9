package engine

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"babelfeed/internal/logger"
	"babelfeed/internal/model"
)

// AnthropicEngine is a translator/summarizer on the Anthropic Messages API.
type AnthropicEngine struct {
	rec     model.Engine
	client  anthropic.Client
	limiter *RateLimiter
}

func NewAnthropicEngine(rec model.Engine, limiter *RateLimiter) *AnthropicEngine {
	opts := []option.RequestOption{
		option.WithAPIKey(rec.APIKey),
		option.WithRequestTimeout(requestTimeout),
	}
	if rec.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(rec.BaseURL))
	}
	return &AnthropicEngine{
		rec:     rec,
		client:  anthropic.NewClient(opts...),
		limiter: limiter,
	}
}

func (e *AnthropicEngine) Name() string { return e.rec.Name }

func (e *AnthropicEngine) MaxSize() int { return e.rec.MaxSize() }

func (e *AnthropicEngine) MetersTokens() bool { return e.rec.IsAI }

func (e *AnthropicEngine) Translate(ctx context.Context, text string, opts TranslateOptions) Result {
	systemPrompt := e.rec.TitlePrompt
	if systemPrompt == "" {
		systemPrompt = DefaultTitlePrompt
	}
	if opts.Kind == KindContent {
		systemPrompt = e.rec.ContentPrompt
		if systemPrompt == "" {
			systemPrompt = DefaultContentPrompt
		}
	}

	var messages []anthropic.MessageParam
	if opts.Kind == KindContent && opts.TitleContext != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("Article title: "+opts.TitleContext)))
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	return e.complete(ctx, renderPrompt(systemPrompt, opts.TargetLanguage), messages)
}

func (e *AnthropicEngine) Summarize(ctx context.Context, text, targetLanguage string) Result {
	systemPrompt := e.rec.SummaryPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSummaryPrompt
	}
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
	}
	return e.complete(ctx, renderPrompt(systemPrompt, targetLanguage), messages)
}

func (e *AnthropicEngine) complete(ctx context.Context, systemPrompt string, messages []anthropic.MessageParam) Result {
	if err := e.limiter.Wait(ctx); err != nil {
		logger.Warn("engine rate limit wait failed", "module", "engine", "action", "fetch", "resource", "engine", "result", "failed", "engine", e.rec.Name, "error", err)
		return Result{}
	}

	maxTokens := int64(e.rec.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.rec.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages:    messages,
		Temperature: anthropic.Float(e.rec.Temperature),
		TopP:        anthropic.Float(e.rec.TopP),
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("engine call failed", "module", "engine", "action", "fetch", "resource", "engine", "result", "failed", "engine", e.rec.Name, "error", err)
		return Result{}
	}

	var text string
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += v.Text
		}
	}
	return Result{
		Text:   text,
		Tokens: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
}

func (e *AnthropicEngine) Validate(ctx context.Context) error {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.rec.Model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hi")),
		},
	}
	_, err := e.client.Messages.New(ctx, params)
	return err
}
