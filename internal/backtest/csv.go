package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"fnotrader/internal/signals"
)

// Accepted date layouts for imported rows; NSE reports use 02-Jan-2006.
var csvDateLayouts = []string{dateLayout, "02-Jan-2006", "02-01-2006"}

var csvColumnAliases = map[string]string{
	"date":         "date",
	"open":         "open",
	"close":        "close",
	"vwap":         "vwap",
	"delivery_qty": "delivery_qty",
	"deliveryqty":  "delivery_qty",
	"delivery":     "delivery_qty",
	"oi_sum":       "oi_sum",
	"oisum":        "oi_sum",
	"oi":           "oi_sum",
}

// ReadObservationsCSV parses merged daily rows with a header line. Columns
// are matched by name; empty cells read as missing. Rows come back sorted
// by date.
func ReadObservationsCSV(r io.Reader) ([]signals.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if name, ok := csvColumnAliases[key]; ok {
			cols[name] = i
		}
	}
	for _, need := range []string{"date", "close"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("csv header is missing %q", need)
		}
	}
	var out []signals.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		date, err := parseCSVDate(cell(rec, cols, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		obs := signals.Observation{Date: date}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"open", &obs.Open}, {"close", &obs.Close}, {"vwap", &obs.VWAP},
			{"delivery_qty", &obs.DeliveryQty}, {"oi_sum", &obs.OISum},
		}
		for _, f := range fields {
			v, err := parseCSVFloat(cell(rec, cols, f.name))
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, f.name, err)
			}
			*f.dst = v
		}
		out = append(out, obs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func cell(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseCSVDate(raw string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

func parseCSVFloat(raw string) (float64, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" || raw == "-" || strings.EqualFold(raw, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(raw, 64)
}

// WriteLedgerCSV writes the ledger with a header line.
func WriteLedgerCSV(w io.Writer, ledger []LedgerRow) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"date", "open", "close", "vwap", "ema", "oi_sum", "longs_till_now", "shorts_till_now",
		"signal", "exec_price", "quantity_traded", "position", "entry_price",
		"daily_pnl", "cumulative_pnl", "event",
	})
	for _, r := range ledger {
		_ = cw.Write([]string{
			r.Date.Format(dateLayout), fmtFloat(r.Open), fmtFloat(r.Close), fmtFloat(r.VWAP), fmtFloat(r.EMA),
			fmtFloat(r.OISum), fmtFloat(r.LongsTillNow), fmtFloat(r.ShortsTillNow),
			r.Signal.String(), fmtFloat(r.ExecPrice), strconv.FormatInt(r.QuantityTraded, 10),
			strconv.FormatInt(r.Position, 10), fmtFloat(r.EntryPrice),
			fmtFloat(r.DailyPnL), fmtFloat(r.CumulativePnL), r.Event,
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes closed trades with a header line.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"entry_date", "exit_date", "holding_days", "direction", "entry_price", "exit_price",
		"qty", "pnl", "return_pct", "exit_reason",
	})
	for _, t := range trades {
		_ = cw.Write([]string{
			t.EntryDate.Format(dateLayout), t.ExitDate.Format(dateLayout), strconv.Itoa(t.HoldingDays),
			t.Direction, fmtFloat(t.EntryPrice), fmtFloat(t.ExitPrice), strconv.FormatInt(t.Qty, 10),
			fmtFloat(t.PnL), fmtFloat(t.ReturnPct), t.ExitReason,
		})
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
