package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Accepted timestamp layouts for bar and signal CSVs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadSeriesCSV parses a bar series with columns:
//
//	time,open,high,low,close[,volume]
//
// A header row is detected and skipped. A malformed row is a DataError for
// this symbol. The parsed series is validated before being returned.
func ReadSeriesCSV(r io.Reader, symbol string) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := &Series{Symbol: symbol}

	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DataError{Symbol: symbol, Index: row, Reason: err.Error()}
		}

		if row == 0 && looksLikeHeader(rec) {
			row++
			continue
		}
		if len(rec) < 5 {
			return nil, &DataError{Symbol: symbol, Index: row, Reason: fmt.Sprintf("want at least 5 columns, got %d", len(rec))}
		}

		t, err := parseTime(rec[0])
		if err != nil {
			return nil, &DataError{Symbol: symbol, Index: row, Reason: err.Error()}
		}

		var vals [4]float64
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, &DataError{Symbol: symbol, Index: row, Reason: fmt.Sprintf("column %d: %v", i+1, err)}
			}
			vals[i] = v
		}

		b := Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
		if len(rec) > 5 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64); err == nil {
				b.Volume = v
			}
		}

		s.Bars = append(s.Bars, b)
		row++
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSeriesFile reads a bar series CSV from disk.
func LoadSeriesFile(path, symbol string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series file: %w", err)
	}
	defer f.Close()
	return ReadSeriesCSV(f, symbol)
}

// ReadSignalsCSV parses a signal stream with columns:
//
//	time,symbol,direction,confidence
//
// direction is "long"/"buy" or "short"/"sell".
func ReadSignalsCSV(r io.Reader) ([]Signal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Signal
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("signals row %d: %w", row, err)
		}

		if row == 0 && looksLikeHeader(rec) {
			row++
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("signals row %d: want at least 3 columns, got %d", row, len(rec))
		}

		t, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("signals row %d: %w", row, err)
		}

		side, err := ParseSide(rec[2])
		if err != nil {
			return nil, fmt.Errorf("signals row %d: %w", row, err)
		}

		sig := Signal{Time: t, Symbol: strings.TrimSpace(rec[1]), Direction: side, Confidence: 1}
		if len(rec) > 3 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64); err == nil {
				sig.Confidence = v
			}
		}
		out = append(out, sig)
		row++
	}
	return out, nil
}

// LoadSignalsFile reads a signal stream CSV from disk.
func LoadSignalsFile(path string) ([]Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signals file: %w", err)
	}
	defer f.Close()
	return ReadSignalsCSV(f)
}

// ParseSide maps a direction token to a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want long|short|buy|sell)", s)
	}
}

func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	return first == "time" || first == "timestamp" || first == "date"
}
