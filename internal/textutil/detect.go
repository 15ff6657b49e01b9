package textutil

import (
	"github.com/abadojack/whatlanggo"

	"babelfeed/internal/logger"
)

// DetectLanguage guesses the source language of an entry from its title
// and body. It never fails: anything the detector cannot classify with
// confidence comes back as "auto", which engines treat as autodetect.
func DetectLanguage(title, content string) string {
	text := title + " " + content
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		logger.Warn("cannot detect source language", "module", "textutil", "action", "detect", "resource", "language", "result", "unreliable")
		return "auto"
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "auto"
	}
	return code
}
