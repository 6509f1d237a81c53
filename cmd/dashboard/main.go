package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/app"
	"crypto_dash/internal/cache"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/export"
	"crypto_dash/internal/service"

	"github.com/spf13/pflag"
)

var rangeFlags = map[string]domain.PriceRange{
	"0-0.05":   domain.RangeMicro,
	"0.05-0.5": domain.RangeSmall,
	"0.5-5":    domain.RangeMid,
	"5-50":     domain.RangeLarge,
	"50+":      domain.RangeAbove50,
}

var tierFlags = map[string]domain.PriceTier{
	"lt10": domain.TierUnder10,
	"ge10": domain.TierAtLeast10,
}

var bandFlags = map[string]domain.PriceBand{
	"0-50": domain.BandUpTo50,
	"50+":  domain.BandAbove50,
}

type options struct {
	view      string
	ranges    []string
	tier      string
	band      string
	coin1     string
	coin2     string
	export    string
	exportDir string
	history   int
	icons     bool
}

func main() {
	var opts options
	configPath := pflag.String("config", infra.DefaultConfigPath, "path to the YAML config")
	source := pflag.String("source", "", "market source: coingecko | coinmarketcap_scrape")
	pflag.StringVar(&opts.view, "view", "all", "budget | cheap | increase | volume | compare | liquidity | history | all")
	pflag.StringSliceVar(&opts.ranges, "ranges", []string{"0.5-5", "5-50"}, "price ranges for the budget view: 0-0.05,0.05-0.5,0.5-5,5-50,50+")
	pflag.StringVar(&opts.tier, "tier", "lt10", "price tier for the increase view: lt10 | ge10")
	pflag.StringVar(&opts.band, "band", "0-50", "price band for the liquidity view: 0-50 | 50+")
	pflag.StringVar(&opts.coin1, "coin1", "Bitcoin", "first coin to compare")
	pflag.StringVar(&opts.coin2, "coin2", "Ethereum", "second coin to compare")
	pflag.StringVar(&opts.export, "export", "", "write the live snapshot to this .xlsx or .csv file")
	pflag.IntVar(&opts.history, "history", 0, "rows of persisted history to show (0 = config default)")
	pflag.BoolVar(&opts.icons, "icons", false, "cache coin icons for the live snapshot")
	pflag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	if *source != "" {
		cfg.Source.Kind = domain.SourceKind(*source)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenCacheStore(ctx)
	if err != nil {
		slog.Error("Failed to open cache store", slog.Any("error", err))
		os.Exit(1)
	}

	var history domain.SnapshotRepository
	if s, err := bootstrap.OpenStorage(); err != nil {
		slog.Warn("History unavailable", slog.Any("error", err))
	} else {
		history = s
	}

	snapshots := cache.New(bootstrap.SourceResolver(), store, time.Duration(cfg.Cache.TTLSec)*time.Second)
	dash := service.NewDashboard(snapshots, history, cfg.Source.Kind, cfg.Source.PageSize, service.WorkingHours{
		Start: cfg.Dashboard.WorkStartHour,
		End:   cfg.Dashboard.WorkEndHour,
	})

	opts.exportDir = cfg.Dashboard.ExportDir
	if opts.history <= 0 {
		opts.history = cfg.Storage.RecentLimit
	}

	if err := run(ctx, dash, bootstrap, opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dash *service.Dashboard, bootstrap *app.Bootstrap, opts options) error {
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if opts.export != "" || opts.icons {
		snap, err := dash.Snapshot(ctx, now)
		if err != nil {
			return err
		}
		if opts.export != "" {
			path := opts.export
			// bare file names land in the configured export directory
			if filepath.Base(path) == path && opts.exportDir != "" {
				path = filepath.Join(opts.exportDir, path)
			}
			if err := exportSnapshot(path, snap); err != nil {
				return err
			}
			fmt.Fprintf(w, "Exported %d coins to %s\n", snap.Len(), path)
		}
		if opts.icons {
			if _, err := bootstrap.OpenIcons(); err != nil {
				return err
			}
			bootstrap.SyncIcons(ctx, snap)
		}
	}

	views := []string{opts.view}
	if opts.view == "all" {
		views = []string{"budget", "cheap", "increase", "volume", "compare", "liquidity"}
	}

	for _, v := range views {
		err := renderView(ctx, w, dash, v, opts, now)
		switch {
		case errors.Is(err, domain.ErrOutsideWorkingHours),
			errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrInvalidCoinName):
			// user-facing messages, not failures
			fmt.Fprintf(w, "%s\n\n", err)
		case err != nil:
			return err
		}
		w.Flush()
	}
	return nil
}

func renderView(ctx context.Context, w *tabwriter.Writer, dash *service.Dashboard, view string, opts options, now time.Time) error {
	switch view {
	case "budget":
		ranges, err := parseRanges(opts.ranges)
		if err != nil {
			return err
		}
		pick, ok, err := dash.BudgetPick(ctx, now, ranges)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "== Least average downfall ==")
		if !ok {
			fmt.Fprintln(w, "No coin found in the selected ranges")
			break
		}
		r := pick.Row
		fmt.Fprintln(w, "COIN\tSYMBOL\tPRICE\tAVG DOWNFALL\tRANGE\tCONSIDERED")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", r.CoinName, r.CoinSymbol, service.FormatUSD(r.Price),
			service.FormatPct(r.AvgDownfallPct), r.PriceRange, pick.Considered)

	case "cheap":
		rows, err := dash.CheapestPrev1h(ctx, now)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "== Top 10 cheap coins by 1h-ago price ==")
		fmt.Fprintln(w, "COIN\tPRICE\tPREV 1H\tPREV 24H\tPREV 7D")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.CoinName, service.FormatUSD(r.Price),
				service.FormatUSD(r.PrevPrice1h), service.FormatUSD(r.PrevPrice24h), service.FormatUSD(r.PrevPrice7d))
		}

	case "increase":
		tier, ok := tierFlags[opts.tier]
		if !ok {
			return fmt.Errorf("unknown tier %q", opts.tier)
		}
		rows, err := dash.PriceIncrease(ctx, now, tier)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "== Top price increase in last 1h (%s) ==\n", tier)
		fmt.Fprintln(w, "COIN\tPRICE\tPREV 1H\tCHANGE")
		for _, p := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Row.CoinName, service.FormatUSD(p.Row.Price),
				service.FormatUSD(p.Row.PrevPrice1h), service.FormatUSD(p.Change1h))
		}

	case "volume":
		fmt.Fprintln(w, "== Top 24h volume (A, E, I, O, U, B, C, D) ==")
		rows, err := dash.VolumeLeaders(ctx, now)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "COIN\tSYMBOL\tVOLUME 24H")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.CoinName, r.CoinSymbol, service.FormatUSD(r.Volume24h))
		}

	case "compare":
		fmt.Fprintln(w, "== Coin comparison ==")
		cmp, err := dash.Compare(ctx, now, opts.coin1, opts.coin2)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\t%s\t%s\tDIFF\n", cmp.First.Name, cmp.Second.Name)
		fmt.Fprintf(w, "Price\t%s\t%s\t\n", service.FormatUSD(cmp.First.Price), service.FormatUSD(cmp.Second.Price))
		fmt.Fprintf(w, "Volume 24h\t%s\t%s\t%s\n", service.FormatUSD(cmp.First.Volume24h), service.FormatUSD(cmp.Second.Volume24h), service.FormatUSD(cmp.VolumeDiff))
		fmt.Fprintf(w, "Circulating supply\t%s\t%s\t%s\n", service.FormatNumber(cmp.First.CirculatingSupply), service.FormatNumber(cmp.Second.CirculatingSupply), service.FormatNumber(cmp.SupplyDiff))
		fmt.Fprintf(w, "Market cap\t%s\t%s\t%s\n", service.FormatUSD(cmp.First.MarketCap), service.FormatUSD(cmp.Second.MarketCap), service.FormatUSD(cmp.MarketDiff))

	case "liquidity":
		band, ok := bandFlags[opts.band]
		if !ok {
			return fmt.Errorf("unknown band %q", opts.band)
		}
		shares, err := dash.Liquidity(ctx, now, band)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "== Liquidity top 5 (%s) ==\n", band)
		writeLiquidity(w, shares)

	case "history":
		records, err := dash.History(ctx, opts.history)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "== Snapshot history ==")
		fmt.Fprintln(w, "TS\tCOIN\tSYMBOL\tPRICE\t1H\t24H\t7D")
		for _, rec := range records {
			r := rec.Raw()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", rec.TS, r.CoinName, r.CoinSymbol, service.FormatUSD(r.Price),
				service.FormatPct(r.Pct1h), service.FormatPct(r.Pct24h), service.FormatPct(r.Pct7d))
		}

	default:
		return fmt.Errorf("unknown view %q", view)
	}
	fmt.Fprintln(w)
	return nil
}

// writeLiquidity prints the liquidity slices. The share column is left out
// when every volume is zero.
func writeLiquidity(w io.Writer, shares []analytics.LiquidityShare) {
	var total float64
	for _, s := range shares {
		total += s.Volume24h
	}
	if total <= 0 {
		fmt.Fprintln(w, "COIN\tVOLUME 24H")
		for _, s := range shares {
			fmt.Fprintf(w, "%s\t%s\n", s.CoinName, service.FormatUSD(s.Volume24h))
		}
		return
	}
	fmt.Fprintln(w, "COIN\tVOLUME 24H\tSHARE")
	for _, s := range shares {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.CoinName, service.FormatUSD(s.Volume24h), service.FormatPct(100*s.Volume24h/total))
	}
}

func parseRanges(names []string) ([]domain.PriceRange, error) {
	out := make([]domain.PriceRange, 0, len(names))
	for _, n := range names {
		r, ok := rangeFlags[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown price range %q", n)
		}
		out = append(out, r)
	}
	return out, nil
}

func exportSnapshot(path string, snap domain.MarketSnapshot) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return export.WriteXLSX(path, snap)
	case ".csv":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := export.WriteCSV(f, snap); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported export format %q (use .xlsx or .csv)", filepath.Ext(path))
	}
}
