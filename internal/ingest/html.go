package ingest

import (
	"html"
	"regexp"
	"strings"
	"time"
)

var (
	brRe  = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	tagRe = regexp.MustCompile(`<[^>]+>`)
)

// htmlToText flattens a Graph HTML body to plain text: line breaks for
// <br> and </p>, all other tags removed, entities unescaped.
func htmlToText(value string) string {
	if value == "" {
		return ""
	}
	text := brRe.ReplaceAllString(value, "\n")
	text = tagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// parseGraphTime parses a Graph ISO-8601 timestamp, defaulting to now
// when absent or malformed.
func parseGraphTime(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		if t, err = time.Parse("2006-01-02T15:04:05.999999999", value); err != nil {
			return time.Now().UTC()
		}
	}
	return t.UTC()
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}
