package textutil

import (
	"strings"

	"babelfeed/internal/logger"
)

// Group-by metrics for GroupChunks.
const (
	GroupByTokens     = "tokens"
	GroupByCharacters = "characters"
)

// ChunkOnDelimiter splits text by delimiter and greedily recombines the
// pieces into blocks of at most maxTokens (measured after re-joining with
// the delimiter). Pieces that alone exceed the budget are dropped with a
// warning; an ellipsis marker is appended to the preceding block when it
// still fits. Every emitted block keeps the delimiter on its tail.
func ChunkOnDelimiter(text string, maxTokens int, delimiter string) []string {
	pieces := strings.Split(text, delimiter)
	combined, dropped := combineChunks(pieces, maxTokens, delimiter)
	if dropped > 0 {
		logger.Warn("chunks dropped due to overflow", "module", "textutil", "action", "chunk", "resource", "text", "result", "dropped", "count", dropped)
	}
	out := make([]string, len(combined))
	for i, c := range combined {
		out[i] = c + delimiter
	}
	return out
}

// combineChunks merges adjacent pieces into blocks without exceeding
// maxTokens, counting the joining delimiters. Returns the blocks and the
// number of over-long pieces dropped.
func combineChunks(chunks []string, maxTokens int, delimiter string) ([]string, int) {
	var output []string
	var candidate []string
	dropped := 0

	for _, chunk := range chunks {
		if CountTokens(chunk) > maxTokens {
			logger.Warn("chunk overflow", "module", "textutil", "action", "chunk", "resource", "text", "result", "overflow")
			if CountTokens(strings.Join(append(append([]string{}, candidate...), "..."), delimiter)) <= maxTokens {
				candidate = append(candidate, "...")
				dropped++
			}
			continue
		}
		extended := CountTokens(strings.Join(append(append([]string{}, candidate...), chunk), delimiter))
		if extended > maxTokens {
			output = append(output, strings.Join(candidate, delimiter))
			candidate = []string{chunk}
		} else {
			candidate = append(candidate, chunk)
		}
	}
	if len(candidate) > 0 {
		output = append(output, strings.Join(candidate, delimiter))
	}
	return output, dropped
}

// GroupChunks combines split chunks until the accumulated metric would
// exceed half of maxSize. The half is deliberate: an engine's max size
// bounds prompt plus completion, so the input keeps headroom for the
// output. Markdown table rows (chunks starting with "|") join with a
// single newline so tables survive regrouping.
func GroupChunks(split SplitResult, maxSize int, groupBy string) []string {
	values := split.Tokens
	if groupBy == GroupByCharacters {
		values = split.Characters
	}
	if len(values) != len(split.Chunks) {
		logger.Error("group chunks metric mismatch", "module", "textutil", "action", "group", "resource", "text", "result", "failed")
		return split.Chunks
	}

	var grouped []string
	var current strings.Builder
	currentValue := 0
	budget := maxSize / 2

	for i, chunk := range split.Chunks {
		value := values[i]
		if currentValue+value > budget {
			grouped = append(grouped, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(chunk)
			currentValue = value
			continue
		}
		if strings.HasPrefix(chunk, "|") {
			current.WriteString("\n" + chunk)
		} else {
			current.WriteString("\n\n" + chunk)
		}
		currentValue += value
	}
	if current.Len() > 0 {
		grouped = append(grouped, strings.TrimSpace(current.String()))
	}
	return grouped
}
