package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gigradar/gigradar/domain/event"
)

// maxDescriptionChars bounds how much of the description feeds the
// embedding so it does not overwhelm the weighted fields before it.
const maxDescriptionChars = 1000

// ComposeEventText builds the weighted text an event is embedded from.
// The redundancy is deliberate: the name is repeated under two labels and
// artists appear as both "Artists" and "Performers" to bias cosine
// similarity towards name and artist matches.
func ComposeEventText(e event.Event) string {
	var b strings.Builder

	if e.Name() != "" {
		name := cleanText(e.Name())
		b.WriteString("Event: " + name + ". ")
		b.WriteString("Title: " + name + ". ")
	}

	if e.Category() != "" {
		b.WriteString("Category: " + cleanText(e.Category()) + ". ")
	}

	if artists := e.Artists(); len(artists) > 0 {
		names := make([]string, len(artists))
		for i, a := range artists {
			names[i] = a.Name()
		}
		joined := cleanText(strings.Join(names, ", "))
		b.WriteString("Artists: " + joined + ". ")
		b.WriteString("Performers: " + joined + ". ")
	}

	if tags := e.Tags(); len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name()
		}
		b.WriteString("Tags: " + cleanText(strings.Join(names, ", ")) + ". ")
	}

	if e.Location() != "" {
		b.WriteString("Location: " + cleanText(e.Location()) + ". ")
	}

	if v := e.Venue(); v != nil {
		if types := v.Types(); len(types) > 0 {
			b.WriteString("Venue Type: " + cleanText(strings.Join(types, ", ")) + ". ")
		}

		if rating := v.Rating(); rating != nil {
			b.WriteString("Venue Rating: " + formatFloat(*rating) + " stars")
			if total := v.UserRatingsTotal(); total > 0 {
				b.WriteString(" based on " + strconv.Itoa(total) + " reviews")
			}
			b.WriteString(". ")
		}

		if score := v.PopularityScore(); score != nil {
			b.WriteString("Venue Popularity: " + popularityPhrase(*score, v.City()) + ". ")
		}
	}

	if tc := timeContext(e.StartDate()); tc != "" {
		b.WriteString("Time: " + tc + ". ")
	}

	if e.Description() != "" {
		description := cleanText(e.Description())
		if runes := []rune(description); len(runes) > maxDescriptionChars {
			description = string(runes[:maxDescriptionChars])
		}
		b.WriteString("Description: " + description)
	}

	return strings.TrimSpace(b.String())
}

// popularityPhrase buckets a popularity score into a phrase, optionally
// qualified by the venue's city.
func popularityPhrase(score float64, city string) string {
	var band string
	switch {
	case score >= 90:
		band = "extremely popular venue"
	case score >= 80:
		band = "highly popular venue"
	case score >= 70:
		band = "very popular venue"
	case score >= 50:
		band = "popular venue"
	default:
		band = "venue with moderate popularity"
	}

	if city == "" {
		return band
	}

	switch {
	case score >= 85:
		return band + ", top-rated venue in " + city
	case score >= 70:
		return band + ", well-known venue in " + city
	default:
		return band + ", venue in " + city
	}
}

// timeContext describes when the event happens: weekend or weekday, part
// of day, and season.
func timeContext(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	var b strings.Builder

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		b.WriteString("weekend ")
	default:
		b.WriteString("weekday ")
	}

	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 12:
		b.WriteString("morning ")
	case hour >= 12 && hour < 17:
		b.WriteString("afternoon ")
	case hour >= 17 && hour < 21:
		b.WriteString("evening ")
	default:
		b.WriteString("night ")
	}

	switch t.Month() {
	case time.December, time.January, time.February:
		b.WriteString("winter")
	case time.March, time.April, time.May:
		b.WriteString("spring")
	case time.June, time.July, time.August:
		b.WriteString("summer")
	default:
		b.WriteString("autumn")
	}

	return b.String()
}

// cleanText collapses whitespace runs and strips everything outside
// letters (diacritics included), digits, spaces and ".,!?'-".
func cleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".,!?'-", r):
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}
