package model

import "time"

// Engine provider kinds.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderCompatible = "compatible"
)

// Engine is a configuration record parameterizing one chat-completion
// translator/summarizer. AI engines meter tokens, others characters.
type Engine struct {
	Name             string
	Provider         string // openai, anthropic, compatible
	APIKey           string
	BaseURL          string // required for compatible
	Model            string
	TitlePrompt      string // system prompt for title translation
	ContentPrompt    string // system prompt for content translation
	SummaryPrompt    string
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int // max input units per call for AI engines
	MaxCharacters    int // for rule-based engines
	IsAI             bool
	Valid            TriState
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaxSize returns the engine's input budget in whichever unit it meters.
func (e Engine) MaxSize() int {
	if e.IsAI {
		return e.MaxTokens
	}
	return e.MaxCharacters
}
