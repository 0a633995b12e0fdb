// Package scraper fetches event listings from third-party portals and
// normalizes them into documents.
package scraper

import (
	"context"
	"encoding/json"

	"github.com/gigradar/gigradar/domain/event"
)

// Source is one portal adapter. Fetch pages the portal and emits raw
// records until the portal is exhausted, the per-source cap is reached, or
// a fatal error occurs — in which case it returns the records collected so
// far alongside the error. Map is a pure, deterministic transformation of
// one raw record into a normalized document.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]json.RawMessage, error)
	Map(raw json.RawMessage) (event.Document, error)
}
