package model

// TranslatedContent is a memoized translation of one atomic text unit.
// Hash is a CityHash128 of original+language rendered as decimal digits;
// rows are append-only and never evicted.
type TranslatedContent struct {
	Hash       string
	Original   string
	Language   string
	Translated string
	Tokens     int
	Characters int
}
