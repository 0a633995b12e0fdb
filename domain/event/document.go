package event

import (
	"strconv"
	"strings"
	"time"
)

// Document is the normalized event record every source adapter emits and
// the integrator consumes. Timestamps are epoch seconds as decimal digits,
// or the literal "null" when the source did not provide them.
type Document struct {
	EventName   string `json:"event_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Thumbnail   string `json:"thumbnail"`
	URL         string `json:"url"`
	Location    string `json:"location"`
	Place       string `json:"place"`
	Category    string `json:"category"`
	Tags        string `json:"tags"`
	Artists     string `json:"artists"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// ArtistNames returns the document's artist names, trimmed, de-duplicated
// and with empty entries dropped.
func (d Document) ArtistNames() []string {
	return ParseNames(d.Artists)
}

// TagNames returns the document's tag names, trimmed, de-duplicated and
// with empty entries dropped.
func (d Document) TagNames() []string {
	return ParseNames(d.Tags)
}

// ParseNames splits a comma-separated list into trimmed, non-empty,
// de-duplicated names, preserving first-seen order.
func ParseNames(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ParseTimestamp coerces an epoch timestamp string into a time. Values with
// more than 10 digits are treated as milliseconds and divided by 1000.
// Empty, "null" or unparseable input returns nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}

	digits := s
	if strings.HasPrefix(digits, "-") {
		digits = digits[1:]
	}
	if len(digits) > 10 {
		n /= 1000
	}

	t := time.Unix(n, 0).UTC()
	return &t
}
