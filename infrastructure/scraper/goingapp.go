package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/domain/tag"
)

const (
	goingAppSearchURL = "https://goingapp.pl/szukaj?refinementList%5Btype%5D%5B0%5D=rundate&refinementList%5Btype%5D%5B1%5D=activity"
	goingAppEventURL  = "https://queue.goingapp.pl/wydarzenie/"

	goingAppThumbnailPrefix = "https://res.cloudinary.com/dr89d8ldb/image/upload/c_fill,h_350,w_405/f_webp/q_auto:eco/v1/"

	// algoliaURLFragment identifies the XHR endpoint whose responses carry
	// the event records.
	algoliaURLFragment = "algolia.net/1/indexes/"

	cookieButtonSelector = "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll"
	loadMoreSelector     = ".ais-InfiniteHits-loadMore"
)

// GoingApp is the browser-driven adapter for goingapp.pl. The listing is
// rendered client-side from an XHR search backend, so Fetch drives a
// headless browser: it dismisses the consent overlay, clicks the
// "load more" control until it disappears or the cap is met, and collects
// records by intercepting the XHR responses. A countdown gate tracks
// outstanding intercepted requests; before each page advance it waits for
// every response to be consumed, for at most ten seconds.
type GoingApp struct {
	cap    int
	logger *slog.Logger
}

// NewGoingApp creates the GoingApp adapter with the given per-source cap.
func NewGoingApp(cap int, logger *slog.Logger) *GoingApp {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoingApp{cap: cap, logger: logger}
}

// Name returns the adapter identifier.
func (g *GoingApp) Name() string { return "GoingApp" }

// Fetch drives the headless browser. When navigation fails it returns the
// records collected so far together with the error; a failure later in
// pagination is logged, ends the walk, and the collected records are
// returned without an error.
func (g *GoingApp) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	collector := newResponseCollector(g.cap)
	g.listen(browserCtx, collector)

	g.logger.Info("started fetching", "source", g.Name(), "cap", g.cap)

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(goingAppSearchURL),
		chromedp.Sleep(5*time.Second),
	)
	if err != nil {
		return collector.records(), fmt.Errorf("navigate: %w", err)
	}

	g.dismissConsent(browserCtx)

	for collector.count() < g.cap {
		if err := collector.waitIdle(browserCtx, 10*time.Second); err != nil {
			break
		}
		if collector.count() >= g.cap {
			g.logger.Info("record cap reached", "source", g.Name(), "cap", g.cap)
			break
		}

		state, err := g.loadMoreState(browserCtx)
		if err != nil {
			g.logger.Warn("failed to inspect load-more control",
				"source", g.Name(),
				"error", err,
			)
			break
		}
		if state != "enabled" {
			g.logger.Info("no further pages", "source", g.Name(), "control", state)
			break
		}

		if err := chromedp.Run(browserCtx,
			chromedp.ScrollIntoView(loadMoreSelector, chromedp.ByQuery),
			chromedp.Click(loadMoreSelector, chromedp.ByQuery),
			chromedp.Sleep(4*time.Second),
		); err != nil {
			g.logger.Warn("load-more click failed", "source", g.Name(), "error", err)
			break
		}

		g.logger.Debug("pagination progress",
			"source", g.Name(),
			"records", collector.count(),
		)
	}

	records := collector.records()
	g.logger.Info("finished fetching", "source", g.Name(), "events", len(records))
	return records, nil
}

// listen attaches the XHR interception handlers. Response bodies must be
// read through the CDP executor, so body retrieval happens on a separate
// goroutine keyed by request ID.
func (g *GoingApp) listen(ctx context.Context, collector *responseCollector) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if strings.Contains(e.Request.URL, algoliaURLFragment) {
				collector.track(e.RequestID)
			}
		case *network.EventLoadingFailed:
			if collector.tracked(e.RequestID) {
				collector.drop(e.RequestID)
			}
		case *network.EventLoadingFinished:
			if !collector.tracked(e.RequestID) {
				return
			}
			go func(id network.RequestID) {
				defer collector.drop(id)

				c := chromedp.FromContext(ctx)
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
				if err != nil {
					g.logger.Warn("failed to read intercepted response", "error", err)
					return
				}
				if err := collector.consume(body); err != nil {
					g.logger.Warn("failed to parse intercepted response", "error", err)
				}
			}(e.RequestID)
		}
	})
}

func (g *GoingApp) dismissConsent(ctx context.Context) {
	var visible bool
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(
		`(() => { const b = document.querySelector(%q); return b !== null && b.offsetParent !== null; })()`,
		cookieButtonSelector), &visible))
	if err != nil || !visible {
		return
	}

	g.logger.Info("dismissing consent overlay", "source", g.Name())
	if err := chromedp.Run(ctx,
		chromedp.Click(cookieButtonSelector, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		g.logger.Warn("consent dismissal failed", "source", g.Name(), "error", err)
	}
}

// loadMoreState reports the load-more control as "enabled", "disabled" or
// "missing".
func (g *GoingApp) loadMoreState(ctx context.Context) (string, error) {
	var state string
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(
		`(() => {
			const b = document.querySelector(%q);
			if (b === null) return "missing";
			return b.disabled ? "disabled" : "enabled";
		})()`, loadMoreSelector), &state))
	return state, err
}

// responseCollector accumulates intercepted records and gates pagination
// on outstanding requests.
type responseCollector struct {
	mu       sync.Mutex
	pending  map[network.RequestID]struct{}
	raws     []json.RawMessage
	cap      int
	idleCh   chan struct{}
}

func newResponseCollector(cap int) *responseCollector {
	return &responseCollector{
		pending: make(map[network.RequestID]struct{}),
		cap:     cap,
		idleCh:  make(chan struct{}, 1),
	}
}

func (c *responseCollector) track(id network.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = struct{}{}
}

func (c *responseCollector) tracked(id network.RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

func (c *responseCollector) drop(id network.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	if len(c.pending) == 0 {
		select {
		case c.idleCh <- struct{}{}:
		default:
		}
	}
}

type algoliaResponse struct {
	Results []struct {
		Hits []json.RawMessage `json:"hits"`
	} `json:"results"`
}

func (c *responseCollector) consume(body []byte) error {
	var resp algoliaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, result := range resp.Results {
		for _, hit := range result.Hits {
			if len(c.raws) >= c.cap {
				return nil
			}
			c.raws = append(c.raws, hit)
		}
	}
	return nil
}

func (c *responseCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.raws)
}

func (c *responseCollector) records() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, len(c.raws))
	copy(out, c.raws)
	return out
}

// waitIdle blocks until no intercepted requests remain outstanding, the
// timeout elapses, or the context is cancelled.
func (c *responseCollector) waitIdle(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	outstanding := len(c.pending)
	c.mu.Unlock()
	if outstanding == 0 {
		return nil
	}

	select {
	case <-c.idleCh:
		return nil
	case <-time.After(timeout):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type goingAppHit struct {
	NamePL             string      `json:"name_pl"`
	ArtistsNames       []string    `json:"artists_names"`
	StartDateTimestamp json.Number `json:"start_date_timestamp"`
	EndDateTimestamp   json.Number `json:"end_date_timestamp"`
	Thumbnail          string      `json:"thumbnail"`
	Slug               string      `json:"slug"`
	RundateSlug        string      `json:"rundate_slug"`
	LocationsNames     []string    `json:"locations_names"`
	PlaceName          string      `json:"place_name"`
	CategoryName       string      `json:"category_name"`
	TagsNames          []string    `json:"tags_names"`
	DescriptionPL      string      `json:"description_pl"`
}

// Map converts one intercepted search hit into a normalized document.
func (g *GoingApp) Map(raw json.RawMessage) (event.Document, error) {
	var hit goingAppHit
	if err := json.Unmarshal(raw, &hit); err != nil {
		return event.Document{}, fmt.Errorf("decode hit: %w", err)
	}

	eventURL := ""
	if hit.Slug != "" && hit.RundateSlug != "" {
		eventURL = goingAppEventURL + hit.Slug + "/" + hit.RundateSlug
	}

	location := ""
	if len(hit.LocationsNames) > 0 {
		location = hit.LocationsNames[0]
	}

	thumbnail := ""
	if hit.Thumbnail != "" {
		thumbnail = goingAppThumbnailPrefix + encodeThumbnailPath(hit.Thumbnail)
	}

	return event.Document{
		EventName:   hit.NamePL,
		StartDate:   goingAppTimestamp(hit.StartDateTimestamp),
		EndDate:     goingAppTimestamp(hit.EndDateTimestamp),
		Thumbnail:   thumbnail,
		URL:         eventURL,
		Location:    location,
		Place:       hit.PlaceName,
		Category:    hit.CategoryName,
		Tags:        strings.Join(tag.NormalizeAll(hit.TagsNames), ", "),
		Artists:     strings.Join(hit.ArtistsNames, ", "),
		Description: hit.DescriptionPL,
		Source:      "GoingApp",
	}, nil
}

// goingAppTimestamp converts a portal timestamp to epoch seconds. The
// portal emits milliseconds for some record types; anything longer than
// 10 digits is divided by 1000.
func goingAppTimestamp(n json.Number) string {
	s := n.String()
	if s == "" {
		return "null"
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "null"
	}
	if len(strings.TrimPrefix(s, "-")) > 10 {
		v /= 1000
	}
	return strconv.FormatInt(v, 10)
}

// encodeThumbnailPath percent-encodes each path segment while preserving
// the path structure.
func encodeThumbnailPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
