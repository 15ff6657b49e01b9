package textutil

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"babelfeed/internal/logger"
)

// tokenizerModel pins the BPE used for all token estimates. Counts are
// estimates for budgeting, not a billing contract.
const tokenizerModel = "gpt-3.5-turbo"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.EncodingForModel(tokenizerModel)
		if err != nil {
			logger.Error("tokenizer init failed", "module", "textutil", "action", "init", "resource", "tokenizer", "result", "failed", "error", err)
			return
		}
		encoding = enc
	})
	return encoding
}

// Tokenize encodes text with the pinned BPE.
func Tokenize(text string) []int {
	enc := getEncoding()
	if enc == nil {
		return nil
	}
	return enc.Encode(text, nil, nil)
}

// CountTokens returns the token count of text. If the tokenizer is
// unavailable it falls back to a rough characters/4 estimate so the
// pipeline keeps moving.
func CountTokens(text string) int {
	enc := getEncoding()
	if enc == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
