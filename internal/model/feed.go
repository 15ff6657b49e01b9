package model

import "time"

// TranslationDisplay controls monolingual vs. bilingual rendering.
const (
	DisplayTranslationOnly     = 0 // translation only
	DisplayTranslationOriginal = 1 // translation || original
	DisplayOriginalTranslation = 2 // original || translation
)

// SourceFeed is a subscription to an upstream RSS/Atom URL.
type SourceFeed struct {
	SID           string
	URL           string
	Name          string
	UpdatePeriod  int    // minutes between refreshes, >= 1
	ETag          string // opaque echo of the server's last ETag
	LastUpdated   *time.Time
	LastPull      *time.Time
	Size          int64 // bytes of stored XML
	Valid         TriState
	MaxPosts      int
	TranslatorRef string // engine name, empty for none
	SummaryRef    string // summary engine name, empty for none
	SummaryDetail float64
	Display       int // DisplayTranslationOnly etc.
	Quality       bool
	FetchArticle  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TranslatedFeed is a derived artifact for one (source, language, options)
// triple. Modified mirrors the parent's LastPull when the artifact is
// current.
type TranslatedFeed struct {
	SID              string
	SourceSID        string
	Language         string
	TranslateTitle   bool
	TranslateContent bool
	Summary          bool
	Status           TriState
	Modified         *time.Time
	Size             int64
	TotalTokens      int64
	TotalCharacters  int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Current reports whether the artifact matches the parent's last pull.
func (t TranslatedFeed) Current(parent SourceFeed) bool {
	return t.Modified != nil && parent.LastPull != nil && t.Modified.Equal(*parent.LastPull)
}
