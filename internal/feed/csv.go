package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/types"
)

// CSVFeed replays OHLCV bars loaded from CSV files.
//
// A file loaded for a fixed symbol has the columns
// timestamp,open,high,low,close[,volume]. A file loaded without one carries
// the symbol in the second column: timestamp,symbol,open,high,low,close[,volume].
// A header row is optional. Rows that cannot be parsed are skipped.
type CSVFeed struct {
	*MemoryFeed

	currency types.Currency
	zone     *time.Location
	logger   *slog.Logger
}

// NewCSVFeed creates an empty feed. Assets are stocks quoted in currency and
// timestamps without a zone are read in zone (UTC when nil).
func NewCSVFeed(currency types.Currency, zone *time.Location, logger *slog.Logger) *CSVFeed {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVFeed{
		MemoryFeed: NewMemoryFeed(),
		currency:   currency,
		zone:       zone,
		logger:     logger,
	}
}

// LoadFile reads a CSV file. An empty symbol means the file has a symbol
// column.
func (f *CSVFeed) LoadFile(path, symbol string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	n, skipped, err := f.Load(file, symbol)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	f.logger.Info("loaded price data", "path", path, "bars", n, "skipped", skipped)
	return nil
}

// Load reads CSV rows from r and returns the number of bars added and rows
// skipped.
func (f *CSVFeed) Load(r io.Reader, symbol string) (int, int, error) {
	bars, skipped, err := ParseCSV(r, symbol, f.currency, f.zone)
	if err != nil {
		return 0, 0, err
	}
	f.Add(bars...)
	return len(bars), skipped, nil
}

// ParseCSV parses bar rows into one event per row. See CSVFeed for the
// accepted layouts.
func ParseCSV(r io.Reader, symbol string, currency types.Currency, zone *time.Location) ([]market.Event, int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var (
		events  []market.Event
		skipped int
		line    int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}

		fields := record
		sym := symbol
		if sym == "" {
			if len(record) < 2 {
				skipped++
				continue
			}
			sym = strings.TrimSpace(record[1])
			fields = append([]string{record[0]}, record[2:]...)
		}

		event, err := parseRecord(fields, types.NewStock(sym, currency), zone)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

func parseRecord(record []string, asset types.Asset, zone *time.Location) (market.Event, error) {
	if len(record) < 5 || asset.Symbol == "" {
		return market.Event{}, fmt.Errorf("short record: %d fields", len(record))
	}

	ts, err := parseTimestamp(record[0], zone)
	if err != nil {
		return market.Event{}, err
	}

	var ohlc [4]decimal.Decimal
	for i, name := range []string{"open", "high", "low", "close"} {
		ohlc[i], err = decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return market.Event{}, fmt.Errorf("parse %s: %w", name, err)
		}
	}

	bar := market.PriceBar{
		Instrument: asset,
		Open:       ohlc[0],
		High:       ohlc[1],
		Low:        ohlc[2],
		Close:      ohlc[3],
		Vol:        decimal.Zero,
	}
	if len(record) > 5 {
		if vol, err := decimal.NewFromString(strings.TrimSpace(record[5])); err == nil {
			bar.Vol = vol
		}
	}
	return market.NewEvent(ts, bar), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// parseTimestamp accepts Unix seconds or one of timestampLayouts.
func parseTimestamp(s string, zone *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown timestamp format: %s", s)
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "timestamp", "time", "date", "datetime":
		return true
	}
	return false
}
