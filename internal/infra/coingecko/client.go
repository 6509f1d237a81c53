package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
)

// DefaultURL is the public CoinGecko markets endpoint.
const DefaultURL = "https://api.coingecko.com/api/v3/coins/markets"

const maxAttempts = 3

// marketItem is one element of the /coins/markets response.
// Pointers distinguish JSON null from zero.
type marketItem struct {
	ID                     string   `json:"id"`
	Symbol                 string   `json:"symbol"`
	Name                   string   `json:"name"`
	Image                  string   `json:"image"`
	CurrentPrice           *float64 `json:"current_price"`
	MarketCap              *float64 `json:"market_cap"`
	TotalVolume            *float64 `json:"total_volume"`
	CirculatingSupply      *float64 `json:"circulating_supply"`
	PriceChangePct1hInCcy  *float64 `json:"price_change_percentage_1h_in_currency"`
	PriceChangePct24hInCcy *float64 `json:"price_change_percentage_24h_in_currency"`
	PriceChangePct7dInCcy  *float64 `json:"price_change_percentage_7d_in_currency"`
	LastUpdated            string   `json:"last_updated"`
}

// Client fetches market rows from the CoinGecko REST API.
type Client struct {
	apiURL     string
	vsCurrency string
	page       int
	httpClient *http.Client
	backoff    time.Duration
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithURL points the client at another endpoint (tests, proxies).
func WithURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithVsCurrency sets the quote currency.
func WithVsCurrency(ccy string) Option {
	return func(c *Client) {
		if ccy != "" {
			c.vsCurrency = ccy
		}
	}
}

// WithBackoff sets the base retry delay (doubled per attempt).
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// NewClient creates a CoinGecko client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL:     DefaultURL,
		vsCurrency: "usd",
		page:       1,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		backoff: time.Second,
		logger:  slog.Default().With("module", "coingecko"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind implements domain.MarketSource.
func (c *Client) Kind() domain.SourceKind {
	return domain.SourceCoinGecko
}

// Fetch returns one page of markets ordered by market cap, retrying
// transient failures with exponential backoff.
func (c *Client) Fetch(ctx context.Context, pageSize int) ([]domain.RawMarketRow, error) {
	start := time.Now()

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s
			delay := c.backoff * time.Duration(1<<uint(i-1))
			c.logger.Info("Retrying markets fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				infra.GlobalMetrics.RecordFetchError()
				return nil, domain.NewFatalFetchError(c.Kind(), "request", ctx.Err())
			case <-time.After(delay):
			}
		}

		rows, err := c.doFetch(ctx, pageSize)
		if err == nil {
			infra.GlobalMetrics.RecordFetch(time.Since(start), len(rows))
			return rows, nil
		}
		lastErr = err
		c.logger.Warn("Markets fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
		if !domain.IsRetriable(err) {
			break
		}
	}

	infra.GlobalMetrics.RecordFetchError()
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, pageSize int) ([]domain.RawMarketRow, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(c.page))
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "1h,24h,7d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.NewFatalFetchError(c.Kind(), "request", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(c.Kind(), "request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(c.Kind(), "read", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.NewFetchError(c.Kind(), "status", statusErr)
		}
		return nil, domain.NewFatalFetchError(c.Kind(), "status", statusErr)
	}

	var items []marketItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, domain.NewFatalFetchError(c.Kind(), "decode", err)
	}

	rows := make([]domain.RawMarketRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, it.toRow())
	}
	return rows, nil
}

func (it marketItem) toRow() domain.RawMarketRow {
	return domain.RawMarketRow{
		ID:                it.ID,
		CoinName:          it.Name,
		CoinSymbol:        strings.ToUpper(it.Symbol),
		Price:             analytics.Coerce(it.CurrentPrice),
		Pct1h:             analytics.Coerce(it.PriceChangePct1hInCcy),
		Pct24h:            analytics.Coerce(it.PriceChangePct24hInCcy),
		Pct7d:             analytics.Coerce(it.PriceChangePct7dInCcy),
		Volume24h:         analytics.Coerce(it.TotalVolume),
		MarketCap:         analytics.Coerce(it.MarketCap),
		CirculatingSupply: analytics.Coerce(it.CirculatingSupply),
		LastUpdated:       it.LastUpdated,
		ImageURL:          it.Image,
	}
}
