// Package export writes enriched snapshots to spreadsheet and CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"crypto_dash/internal/domain"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the live snapshot.
const SheetName = "LiveData"

// Columns is the header shared by every export format.
var Columns = []string{
	"coin_id", "coin_name", "coin_symbol", "price",
	"pct_1h", "pct_24h", "pct_7d", "volume_24h", "market_cap", "circulating_supply",
	"prev_price_1h", "prev_price_24h", "prev_price_7d", "avg_downfall_pct",
	"price_range", "price_category_0_50", "price_category_10", "last_updated",
}

func cells(r domain.EnrichedMarketRow) []any {
	return []any{
		r.ID, r.CoinName, r.CoinSymbol, num(r.Price),
		num(r.Pct1h), num(r.Pct24h), num(r.Pct7d), num(r.Volume24h), num(r.MarketCap), num(r.CirculatingSupply),
		num(r.PrevPrice1h), num(r.PrevPrice24h), num(r.PrevPrice7d), num(r.AvgDownfallPct),
		string(r.PriceRange), string(r.PriceCategory0to50), string(r.PriceCategory10), r.LastUpdated,
	}
}

// num leaves missing values as blank cells.
func num(v float64) any {
	if domain.IsMissing(v) {
		return nil
	}
	return v
}

// WriteXLSX saves the snapshot as a single-sheet workbook at path.
func WriteXLSX(path string, snap domain.MarketSnapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i := 0; i < snap.Len(); i++ {
		row := cells(snap.At(i))
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteCSV streams the snapshot as CSV with a header line.
func WriteCSV(w io.Writer, snap domain.MarketSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := 0; i < snap.Len(); i++ {
		vals := cells(snap.At(i))
		record := make([]string, len(vals))
		for j, v := range vals {
			switch x := v.(type) {
			case nil:
				record[j] = ""
			case float64:
				record[j] = strconv.FormatFloat(x, 'f', -1, 64)
			case string:
				record[j] = x
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
