package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gigradar/gigradar/domain/event"
)

const (
	ebiletBaseURL  = "https://www.ebilet.pl"
	ebiletPageSize = 20
)

// Ebilet is the HTTP-paged adapter for the ebilet.pl listing API. It walks
// the listing with linear offset/size paging until an empty page arrives
// or the cap is reached.
type Ebilet struct {
	httpClient *http.Client
	baseURL    string
	cap        int
	logger     *slog.Logger
}

// EbiletOption is a functional option for Ebilet.
type EbiletOption func(*Ebilet)

// WithEbiletBaseURL overrides the portal base URL (used in tests).
func WithEbiletBaseURL(url string) EbiletOption {
	return func(e *Ebilet) { e.baseURL = strings.TrimSuffix(url, "/") }
}

// WithEbiletHTTPClient overrides the HTTP client.
func WithEbiletHTTPClient(hc *http.Client) EbiletOption {
	return func(e *Ebilet) { e.httpClient = hc }
}

// NewEbilet creates the Ebilet adapter with the given per-source cap.
func NewEbilet(cap int, logger *slog.Logger, opts ...EbiletOption) *Ebilet {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Ebilet{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    ebiletBaseURL,
		cap:        cap,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the adapter identifier.
func (e *Ebilet) Name() string { return "Ebilet" }

type ebiletPage struct {
	Titles []json.RawMessage `json:"titles"`
}

// Fetch pages the listing endpoint. A failed page returns the records
// collected so far together with the error.
func (e *Ebilet) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	var records []json.RawMessage
	top := 0

	e.logger.Info("started fetching", "source", e.Name())

	for len(records) < e.cap {
		url := fmt.Sprintf("%s/api/TitleListing/Search?currentTab=2&sort=1&top=%d&size=%d",
			e.baseURL, top, ebiletPageSize)

		page, err := e.fetchPage(ctx, url)
		if err != nil {
			return records, fmt.Errorf("fetch page at offset %d: %w", top, err)
		}

		if len(page.Titles) == 0 {
			break
		}

		for _, title := range page.Titles {
			if len(records) >= e.cap {
				break
			}
			records = append(records, title)
		}
		top += ebiletPageSize
	}

	e.logger.Info("finished fetching", "source", e.Name(), "events", len(records))
	return records, nil
}

func (e *Ebilet) fetchPage(ctx context.Context, url string) (ebiletPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ebiletPage{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return ebiletPage{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ebiletPage{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ebiletPage{}, fmt.Errorf("read body: %w", err)
	}

	var page ebiletPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ebiletPage{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

type ebiletTitle struct {
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
	CategoryName    string   `json:"categoryName"`
	SubcategoryName string   `json:"subcategoryName"`
	DateFrom        string   `json:"dateFrom"`
	DateTo          string   `json:"dateTo"`
	ImageLandscape  string   `json:"imageLandscape"`
	LinkTo          string   `json:"linkTo"`
	Place           string   `json:"place"`
	City            string   `json:"city"`
	Artists         []string `json:"artists"`
	Description     string   `json:"description"`
}

// Map converts one listing record into a normalized document.
func (e *Ebilet) Map(raw json.RawMessage) (event.Document, error) {
	var title ebiletTitle
	if err := json.Unmarshal(raw, &title); err != nil {
		return event.Document{}, fmt.Errorf("decode title: %w", err)
	}

	return event.Document{
		EventName:   title.Title,
		StartDate:   ebiletTimestamp(title.DateFrom),
		EndDate:     ebiletTimestamp(title.DateTo),
		Thumbnail:   ebiletAbsoluteURL(title.ImageLandscape),
		URL:         ebiletAbsoluteURL(title.LinkTo),
		Location:    title.City,
		Place:       title.Place,
		Category:    title.CategoryName,
		Tags:        title.SubcategoryName,
		Artists:     strings.Join(title.Artists, ", "),
		Description: title.Description,
		Source:      "Ebilet",
	}, nil
}

// ebiletTimestamp converts the portal's local datetime string to epoch
// seconds, or "null" when absent or malformed.
func ebiletTimestamp(s string) string {
	if s == "" {
		return "null"
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return "null"
	}
	return strconv.FormatInt(t.UTC().Unix(), 10)
}

func ebiletAbsoluteURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return ebiletBaseURL + "/" + strings.TrimPrefix(path, "/")
}
