package feedio

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"
	"github.com/mmcdole/gofeed"
)

// buildFeed maps a parsed feed onto the output structure, propagating the
// normative per-entry fields: id, title, link, timestamps, authors,
// summary and content (content may carry HTML).
func buildFeed(sourceURL string, parsed *gofeed.Feed) *feeds.Feed {
	out := &feeds.Feed{
		Title:       parsed.Title,
		Link:        &feeds.Link{Href: firstNonEmpty(parsed.Link, sourceURL)},
		Description: parsed.Description,
	}
	if parsed.UpdatedParsed != nil {
		out.Updated = parsed.UpdatedParsed.UTC()
	}
	if len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		out.Author = &feeds.Author{Name: parsed.Authors[0].Name, Email: parsed.Authors[0].Email}
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry := &feeds.Item{
			Id:          firstNonEmpty(item.GUID, item.Link),
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Description,
			Content:     item.Content,
		}
		if item.PublishedParsed != nil {
			entry.Created = item.PublishedParsed.UTC()
		}
		if item.UpdatedParsed != nil {
			entry.Updated = item.UpdatedParsed.UTC()
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			entry.Author = &feeds.Author{Name: item.Authors[0].Name, Email: item.Authors[0].Email}
		}
		out.Items = append(out.Items, entry)
	}

	if out.Updated.IsZero() {
		out.Updated = time.Now().UTC()
	}
	return out
}

// GenerateAtom serializes the parsed feed back to Atom 1.0.
func GenerateAtom(sourceURL string, parsed *gofeed.Feed) (string, error) {
	xml, err := buildFeed(sourceURL, parsed).ToAtom()
	if err != nil {
		return "", fmt.Errorf("generate atom feed: %w", err)
	}
	return xml, nil
}

// GenerateJSON serializes the parsed feed to JSON-Feed.
func GenerateJSON(sourceURL string, parsed *gofeed.Feed) (string, error) {
	json, err := buildFeed(sourceURL, parsed).ToJSON()
	if err != nil {
		return "", fmt.Errorf("generate json feed: %w", err)
	}
	return json, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
