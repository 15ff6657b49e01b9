package textutil

import "babelfeed/internal/model"

// SetTranslationDisplay composes the user-visible text for a translated
// unit according to the display mode.
func SetTranslationDisplay(original, translation string, display int, separator string) string {
	switch display {
	case model.DisplayTranslationOnly:
		return translation
	case model.DisplayTranslationOriginal:
		return translation + separator + original
	case model.DisplayOriginalTranslation:
		return original + separator + translation
	default:
		return ""
	}
}
