// Package cmc scrapes the CoinMarketCap landing page table. The page is
// largely rendered by JavaScript, so an empty table is reported as a fetch
// failure rather than an empty snapshot.
package cmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"

	"github.com/PuerkitoBio/goquery"
)

// DefaultURL is the CoinMarketCap landing page.
const DefaultURL = "https://coinmarketcap.com/"

// ErrTableNotFound means the HTML carried no parsable coin rows.
var ErrTableNotFound = errors.New("coins table not found (likely JS-rendered); use the coingecko source")

// Column positions of the landing page table.
const (
	colName      = 2
	colPrice     = 3
	col1h        = 4
	col24h       = 5
	col7d        = 6
	colMarketCap = 7
	colVolume    = 8
	colSupply    = 9
)

// Scraper reads market rows from CoinMarketCap HTML.
type Scraper struct {
	pageURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewScraper creates a scraper; an empty pageURL uses DefaultURL.
func NewScraper(pageURL string, timeout time.Duration) *Scraper {
	if pageURL == "" {
		pageURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{
		pageURL:    pageURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("module", "cmc_scraper"),
	}
}

// Kind implements domain.MarketSource.
func (s *Scraper) Kind() domain.SourceKind {
	return domain.SourceCoinMarketCap
}

// Fetch scrapes up to pageSize rows.
func (s *Scraper) Fetch(ctx context.Context, pageSize int) ([]domain.RawMarketRow, error) {
	start := time.Now()
	rows, err := s.scrape(ctx, pageSize)
	if err != nil {
		infra.GlobalMetrics.RecordFetchError()
		return nil, err
	}
	infra.GlobalMetrics.RecordFetch(time.Since(start), len(rows))
	return rows, nil
}

func (s *Scraper) scrape(ctx context.Context, pageSize int) ([]domain.RawMarketRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, domain.NewFatalFetchError(s.Kind(), "request", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(s.Kind(), "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewFetchError(s.Kind(), "status", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.NewFatalFetchError(s.Kind(), "parse", err)
	}

	now := domain.FormatTimestamp(time.Now())
	var rows []domain.RawMarketRow
	doc.Find("table tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if pageSize > 0 && len(rows) >= pageSize {
			return false
		}
		row, ok := parseRow(tr.Find("td"))
		if !ok {
			return true
		}
		row.LastUpdated = now
		rows = append(rows, row)
		return true
	})

	if len(rows) == 0 {
		return nil, domain.NewFatalFetchError(s.Kind(), "parse", ErrTableNotFound)
	}
	s.logger.Debug("Scraped rows", slog.Int("rows", len(rows)))
	return rows, nil
}

func parseRow(cells *goquery.Selection) (domain.RawMarketRow, bool) {
	if cells.Length() <= colVolume {
		return domain.RawMarketRow{}, false
	}

	nameCell := cells.Eq(colName)
	name, symbol := nameAndSymbol(nameCell)
	if name == "" {
		return domain.RawMarketRow{}, false
	}

	row := domain.RawMarketRow{
		ID:                slugOf(nameCell, name),
		CoinName:          name,
		CoinSymbol:        strings.ToUpper(symbol),
		Price:             analytics.CoerceString(cells.Eq(colPrice).Text()),
		Pct1h:             signedPct(cells.Eq(col1h)),
		Pct24h:            signedPct(cells.Eq(col24h)),
		Pct7d:             signedPct(cells.Eq(col7d)),
		MarketCap:         analytics.CoerceString(lastSpan(cells.Eq(colMarketCap))),
		Volume24h:         analytics.CoerceString(firstOf(cells.Eq(colVolume), "p, a")),
		CirculatingSupply: domain.Missing,
	}
	if cells.Length() > colSupply {
		fields := strings.Fields(cells.Eq(colSupply).Text())
		if len(fields) > 0 {
			row.CirculatingSupply = analytics.CoerceString(fields[0])
		}
	}
	return row, true
}

func nameAndSymbol(cell *goquery.Selection) (string, string) {
	ps := cell.Find("p")
	switch {
	case ps.Length() >= 2:
		return strings.TrimSpace(ps.Eq(0).Text()), strings.TrimSpace(ps.Eq(1).Text())
	case ps.Length() == 1:
		return strings.TrimSpace(ps.Text()), ""
	default:
		return strings.TrimSpace(cell.Text()), ""
	}
}

// slugOf prefers the /currencies/<slug>/ link over the display name.
func slugOf(cell *goquery.Selection, name string) string {
	if href, ok := cell.Find("a").Attr("href"); ok {
		parts := strings.Split(strings.Trim(href, "/"), "/")
		if len(parts) >= 2 && parts[0] == "currencies" {
			return parts[1]
		}
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// signedPct reads an unsigned percentage whose direction is carried by a
// caret icon class.
func signedPct(cell *goquery.Selection) float64 {
	v := analytics.CoerceString(cell.Text())
	if domain.IsMissing(v) {
		return v
	}
	if cell.Find("[class*='down']").Length() > 0 && v > 0 {
		return -v
	}
	return v
}

func lastSpan(cell *goquery.Selection) string {
	if spans := cell.Find("span"); spans.Length() > 0 {
		return spans.Last().Text()
	}
	return cell.Text()
}

func firstOf(cell *goquery.Selection, selector string) string {
	if sel := cell.Find(selector); sel.Length() > 0 {
		return sel.First().Text()
	}
	return cell.Text()
}
