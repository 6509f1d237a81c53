package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crypto_dash/internal/domain"

	"github.com/disintegration/imaging"
)

// IconSize is the edge length of cached coin icons.
const IconSize = 24

const iconDownloadConcurrency = 5

// IconDownloader handles downloading and caching coin icons
type IconDownloader struct {
	basePath string
	client   *http.Client
}

// NewIconDownloader creates a downloader caching into dir.
func NewIconDownloader(dir string) (*IconDownloader, error) {
	if dir == "" {
		return nil, &domain.ConfigError{Field: "dashboard.icons_dir", Err: fmt.Errorf("empty icons directory")}
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icons directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath: dir,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon fetches imageURL for symbol unless it is already cached and
// returns the local file path. Images are resized to IconSize square.
func (d *IconDownloader) DownloadIcon(ctx context.Context, symbol, imageURL string) (string, error) {
	// Security: Sanitize symbol to prevent path traversal
	safeSymbol := sanitizeSymbol(symbol)
	if safeSymbol == "" {
		return "", fmt.Errorf("invalid symbol: %s", symbol)
	}
	filePath := d.GetIconPath(safeSymbol)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	if imageURL == "" {
		return "", fmt.Errorf("no image url for %s", safeSymbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, IconSize, IconSize, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// GetIconPath returns the local path for a symbol's icon
func (d *IconDownloader) GetIconPath(symbol string) string {
	return filepath.Join(d.basePath, strings.ToLower(sanitizeSymbol(symbol))+".png")
}

// SyncIcons downloads missing icons for every row carrying an image URL and
// returns how many are now cached. Failures are logged and skipped.
func (d *IconDownloader) SyncIcons(ctx context.Context, rows []domain.EnrichedMarketRow) int {
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	var cached atomic.Int64
	semaphore := make(chan struct{}, iconDownloadConcurrency) // Limit concurrent downloads

	for _, row := range rows {
		sym := sanitizeSymbol(row.CoinSymbol)
		if sym == "" || row.ImageURL == "" || seen[sym] {
			continue
		}
		seen[sym] = true

		wg.Add(1)
		go func(sym, imageURL string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := d.DownloadIcon(ctx, sym, imageURL); err != nil {
				slog.Warn("Failed to download icon", slog.String("symbol", sym), slog.Any("error", err))
				return
			}
			cached.Add(1)
		}(sym, row.ImageURL)
	}

	wg.Wait()
	return int(cached.Load())
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
