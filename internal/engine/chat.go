package engine

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"babelfeed/internal/logger"
	"babelfeed/internal/model"
)

// requestTimeout bounds every engine HTTP call.
const requestTimeout = 120 * time.Second

// ChatEngine is a chat-completion translator/summarizer speaking the
// OpenAI wire contract. It covers the openai and compatible providers
// (OpenRouter, Azure OpenAI, Ollama and the like via BaseURL).
type ChatEngine struct {
	rec     model.Engine
	client  openai.Client
	limiter *RateLimiter
}

func NewChatEngine(rec model.Engine, limiter *RateLimiter) *ChatEngine {
	opts := []option.RequestOption{
		option.WithAPIKey(rec.APIKey),
		option.WithRequestTimeout(requestTimeout),
	}
	if rec.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(rec.BaseURL))
	}
	return &ChatEngine{
		rec:     rec,
		client:  openai.NewClient(opts...),
		limiter: limiter,
	}
}

func (e *ChatEngine) Name() string { return e.rec.Name }

func (e *ChatEngine) MaxSize() int { return e.rec.MaxSize() }

func (e *ChatEngine) MetersTokens() bool { return e.rec.IsAI }

func (e *ChatEngine) Translate(ctx context.Context, text string, opts TranslateOptions) Result {
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

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(renderPrompt(systemPrompt, opts.TargetLanguage)),
	}
	if opts.Kind == KindContent && opts.TitleContext != "" {
		messages = append(messages, openai.UserMessage("Article title: "+opts.TitleContext))
	}
	messages = append(messages, openai.UserMessage(text))

	return e.complete(ctx, messages)
}

func (e *ChatEngine) Summarize(ctx context.Context, text, targetLanguage string) Result {
	systemPrompt := e.rec.SummaryPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSummaryPrompt
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(renderPrompt(systemPrompt, targetLanguage)),
		openai.UserMessage(text),
	}
	return e.complete(ctx, messages)
}

// complete issues one chat completion. Failures are logged and come back
// as an empty Result; the orchestrator owns retries and fallbacks.
func (e *ChatEngine) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) Result {
	if err := e.limiter.Wait(ctx); err != nil {
		logger.Warn("engine rate limit wait failed", "module", "engine", "action", "fetch", "resource", "engine", "result", "failed", "engine", e.rec.Name, "error", err)
		return Result{}
	}

	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(e.rec.Model),
		Messages:         messages,
		Temperature:      openai.Float(e.rec.Temperature),
		TopP:             openai.Float(e.rec.TopP),
		FrequencyPenalty: openai.Float(e.rec.FrequencyPenalty),
		PresencePenalty:  openai.Float(e.rec.PresencePenalty),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("engine call failed", "module", "engine", "action", "fetch", "resource", "engine", "result", "failed", "engine", e.rec.Name, "error", err)
		return Result{}
	}
	if len(resp.Choices) == 0 {
		return Result{}
	}

	choice := resp.Choices[0]
	var text string
	// Some relays return a non-stop finish reason with usable content, so
	// content presence wins over the finish reason.
	if choice.FinishReason == "stop" || choice.Message.Content != "" {
		text = choice.Message.Content
	}
	result := Result{Text: text, Tokens: int(resp.Usage.TotalTokens)}
	if !e.rec.IsAI {
		result.Tokens = 0
		result.Characters = len(text)
	}
	return result
}

func (e *ChatEngine) Validate(ctx context.Context) error {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.rec.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Hi"),
		},
		MaxTokens: openai.Int(10),
	}
	_, err := e.client.Chat.Completions.New(ctx, params)
	return err
}
