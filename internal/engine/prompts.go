package engine

import "strings"

// {target_language} is the only placeholder substituted into system
// prompts; engine records may override any prompt but must keep that
// contract so existing prompts remain valid.
const (
	DefaultTitlePrompt = `You are a professional translator. Translate the feed entry title into {target_language}.
Output ONLY the translated title, with no quotes, notes or explanations.
Keep proper nouns and brand names unchanged.`

	DefaultContentPrompt = `You are a professional translator. Translate the paragraph into {target_language}.
Preserve the original formatting, inline Markdown and HTML entities exactly.
Never translate URLs, email addresses or code.
Output ONLY the translation, nothing else.`

	DefaultSummaryPrompt = `You are an expert summarizer. Summarize the text in {target_language}.
Write complete sentences covering the key points, in plain text.
Do not add introductions or conclusions.`
)

// renderPrompt substitutes the target language into a system prompt.
func renderPrompt(prompt, targetLanguage string) string {
	return strings.ReplaceAll(prompt, "{target_language}", targetLanguage)
}
