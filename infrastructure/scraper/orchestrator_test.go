package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/internal/config"
)

// fakeSource emits pre-baked documents, optionally alongside an error.
type fakeSource struct {
	name string
	docs []event.Document
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]json.RawMessage, error) {
	raws := make([]json.RawMessage, len(f.docs))
	for i, doc := range f.docs {
		data, _ := json.Marshal(doc)
		raws[i] = data
	}
	return raws, f.err
}

func (f *fakeSource) Map(raw json.RawMessage) (event.Document, error) {
	var doc event.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return event.Document{}, err
	}
	return doc, nil
}

func doc(url, source string) event.Document {
	return event.Document{EventName: "Event " + url, URL: url, Source: source}
}

func TestScrapeMergesAllSources(t *testing.T) {
	orch := NewOrchestrator(config.NewScrapeConfig(), nil,
		&fakeSource{name: "a", docs: []event.Document{doc("u1", "a"), doc("u2", "a")}},
		&fakeSource{name: "b", docs: []event.Document{doc("u3", "b")}},
	)

	merged := orch.Scrape(context.Background())

	require.Len(t, merged, 3)
}

func TestScrapeDeduplicatesFirstWriteWins(t *testing.T) {
	// Sources merge in registration order, so source "a" owns u1.
	orch := NewOrchestrator(config.NewScrapeConfig(), nil,
		&fakeSource{name: "a", docs: []event.Document{doc("u1", "a")}},
		&fakeSource{name: "b", docs: []event.Document{doc("u1", "b"), doc("u2", "b")}},
	)

	merged := orch.Scrape(context.Background())

	require.Len(t, merged, 2)
	require.Equal(t, "a", merged[0].Source)
	require.Equal(t, "u1", merged[0].URL)
	require.Equal(t, "u2", merged[1].URL)
}

func TestScrapeDropsEmptyURLs(t *testing.T) {
	orch := NewOrchestrator(config.NewScrapeConfig(), nil,
		&fakeSource{name: "a", docs: []event.Document{doc("", "a"), doc("u1", "a")}},
	)

	merged := orch.Scrape(context.Background())

	require.Len(t, merged, 1)
}

func TestScrapeFailingSourceDoesNotAffectOthers(t *testing.T) {
	orch := NewOrchestrator(config.NewScrapeConfig(), nil,
		&fakeSource{name: "broken", err: errors.New("portal down"), docs: []event.Document{doc("u1", "broken")}},
		&fakeSource{name: "ok", docs: []event.Document{doc("u2", "ok")}},
	)

	merged := orch.Scrape(context.Background())

	// The failing source still contributes its partial records.
	require.Len(t, merged, 2)
}

func TestScrapeGlobalCap(t *testing.T) {
	var docs []event.Document
	for i := 0; i < 10; i++ {
		docs = append(docs, doc(fmt.Sprintf("u%d", i), "a"))
	}
	orch := NewOrchestrator(config.NewScrapeConfig().WithCapPerSource(3), nil,
		&fakeSource{name: "a", docs: docs},
	)

	merged := orch.Scrape(context.Background())

	require.Len(t, merged, 3)
}

func TestScrapeNoSources(t *testing.T) {
	orch := NewOrchestrator(config.NewScrapeConfig(), nil)
	require.Empty(t, orch.Scrape(context.Background()))
}
