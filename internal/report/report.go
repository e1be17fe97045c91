// Package report builds the downloadable derived series for a ticker:
// the TWAP/moving-average history report and the bullish/bearish alert
// report. Both are cached as daily snapshots and extended
// incrementally when a snapshot from a previous day exists.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"stockgraphv1/internal/apperr"
	"stockgraphv1/internal/cache"
	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/eod"
	"stockgraphv1/internal/mavg"
	"stockgraphv1/internal/metrics"
	"stockgraphv1/internal/model"
)

// HistoricalRecord is one day of the TWAP/moving-average report.
type HistoricalRecord struct {
	Date      model.Day `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	TwapOpen  float64   `json:"twapOpen"`
	TwapHigh  float64   `json:"twapHigh"`
	TwapLow   float64   `json:"twapLow"`
	TwapClose float64   `json:"twapClose"`
	SMA50     float64   `json:"sma50"`
	SMA200    float64   `json:"sma200"`
	LWMA15    float64   `json:"lwma15"`
	LWMA50    float64   `json:"lwma50"`
}

// AlertRecord is one emitted day of the alert report.
type AlertRecord struct {
	Status string    `json:"status"`
	Ticker string    `json:"ticker"`
	Date   model.Day `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	SMA50  float64   `json:"sma50"`
	SMA200 float64   `json:"sma200"`
}

// File is a generated report ready for download.
type File struct {
	Content  []byte
	FileName string
}

// Service generates and caches the derived reports.
type Service struct {
	eod        *eod.Service
	historical *cache.Reports[HistoricalRecord]
	alerts     *cache.Reports[AlertRecord]
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New creates the report service. metrics may be nil.
func New(eodSvc *eod.Service, clk clock.Clock, snapshotTTL time.Duration, m *metrics.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		eod:        eodSvc,
		historical: cache.NewReports[HistoricalRecord](clk, snapshotTTL),
		alerts:     cache.NewReports[AlertRecord](clk, snapshotTTL),
		metrics:    m,
		log:        log,
	}
}

// HistoricalCache exposes the snapshot cache for sweeper wiring.
func (s *Service) HistoricalCache() *cache.Reports[HistoricalRecord] { return s.historical }

// AlertCache exposes the snapshot cache for sweeper wiring.
func (s *Service) AlertCache() *cache.Reports[AlertRecord] { return s.alerts }

// rawFetcher adapts the orchestrator into the report cache's fetch
// shape: raw daily rows (all columns) from start through the present.
func (s *Service) rawFetcher(ctx context.Context, ticker string) cache.RawFetcher {
	return func(start model.Day) ([]model.Row, error) {
		ds, err := s.eod.GetDailyStats(ctx, ticker, start, model.Day{}, model.ColumnAll)
		if err != nil {
			return nil, err
		}
		return ds.Data, nil
	}
}

// GetHistoricalReport returns the full TWAP/moving-average history for
// a ticker rendered as json or csv.
func (s *Service) GetHistoricalReport(ctx context.Context, ticker, format string) (File, error) {
	format = strings.ToLower(format)
	if format != "json" && format != "csv" {
		return File{}, apperr.New(apperr.ErrUnsupportedFormat, apperr.MsgBadFormat)
	}

	built := false
	series, err := s.historical.GetOrBuild(ticker, s.rawFetcher(ctx, ticker), func(rows []model.Row) []HistoricalRecord {
		built = true
		start := time.Now()
		out := computeHistorical(rows)
		s.metrics.ReportBuild(time.Since(start))
		return out
	})
	if err != nil {
		return File{}, err
	}
	if !built {
		s.metrics.ReportHit()
	}

	var content []byte
	switch format {
	case "json":
		content, err = json.Marshal(series)
		if err != nil {
			return File{}, fmt.Errorf("encode historical report: %w", err)
		}
	case "csv":
		content = historicalCSV(series)
	}
	return File{Content: content, FileName: fmt.Sprintf("%s.%s", ticker, format)}, nil
}

// GetAlertReport returns the ticker's bullish/bearish alert history,
// one comma-joined record per line.
func (s *Service) GetAlertReport(ctx context.Context, ticker string) (string, error) {
	built := false
	series, err := s.alerts.GetOrBuild(ticker, s.rawFetcher(ctx, ticker), func(rows []model.Row) []AlertRecord {
		built = true
		start := time.Now()
		out := computeAlerts(rows, ticker)
		s.metrics.ReportBuild(time.Since(start))
		return out
	})
	if err != nil {
		return "", err
	}
	if !built {
		s.metrics.ReportHit()
	}

	lines := make([]string, len(series))
	for i, rec := range series {
		lines[i] = rec.line()
	}
	return strings.Join(lines, "\n"), nil
}

// col reads a row cell, treating short rows as zero-filled.
func col(r model.Row, i int) float64 {
	if i < len(r.Values) {
		return r.Values[i]
	}
	return 0
}

// round2 matches the two-decimal precision of the emitted figures.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// computeHistorical runs the cumulative TWAPs and the four window
// accumulators over the full series in chronological order. The
// accumulators are freshly seeded each time: snapshot extension
// re-runs them over the whole concatenated history.
func computeHistorical(rows []model.Row) []HistoricalRecord {
	out := make([]HistoricalRecord, 0, len(rows))
	var sumOpen, sumHigh, sumLow, sumClose float64
	sma50 := mavg.NewSMA(50)
	sma200 := mavg.NewSMA(200)
	lwma15 := mavg.NewLWMA(15)
	lwma50 := mavg.NewLWMA(50)

	for i, row := range rows {
		open, high, low := col(row, 0), col(row, 1), col(row, 2)
		close, volume := col(row, 3), col(row, 4)

		sumOpen += open
		sumHigh += high
		sumLow += low
		sumClose += close
		n := float64(i + 1)

		sma50.Push(close)
		sma200.Push(close)
		lwma15.Push(close)
		lwma50.Push(close)

		out = append(out, HistoricalRecord{
			Date:      row.Day,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			TwapOpen:  round2(sumOpen / n),
			TwapHigh:  round2(sumHigh / n),
			TwapLow:   round2(sumLow / n),
			TwapClose: round2(sumClose / n),
			SMA50:     sma50.Average(),
			SMA200:    sma200.Average(),
			LWMA15:    lwma15.Average(),
			LWMA50:    lwma50.Average(),
		})
	}
	return out
}

// computeAlerts classifies each day. A close SMA50 below SMA200 is
// bearish and always emitted; otherwise a volume at least 10% above
// its 50-day average is bullish; every other day is dropped from the
// series.
func computeAlerts(rows []model.Row, ticker string) []AlertRecord {
	out := make([]AlertRecord, 0, len(rows))
	sma50 := mavg.NewSMA(50)
	sma200 := mavg.NewSMA(200)
	volAvg50 := mavg.NewSMA(50)

	for _, row := range rows {
		open, high, low := col(row, 0), col(row, 1), col(row, 2)
		close, volume := col(row, 3), col(row, 4)

		sma50.Push(close)
		sma200.Push(close)
		volAvg50.Push(volume)

		rec := AlertRecord{
			Ticker: ticker,
			Date:   row.Day,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
			SMA50:  sma50.Average(),
			SMA200: sma200.Average(),
		}
		switch {
		case sma50.Average() < sma200.Average():
			rec.Status = "bearish"
			out = append(out, rec)
		case volume >= volAvg50.Average()*1.1:
			rec.Status = "bullish"
			out = append(out, rec)
		}
	}
	return out
}

// line renders the alert record in its fixed download order.
func (r AlertRecord) line() string {
	return strings.Join([]string{
		r.Status,
		r.Ticker,
		r.Date.String(),
		num(r.Open),
		num(r.High),
		num(r.Low),
		num(r.Close),
		num(r.Volume),
		num(r.SMA50),
		num(r.SMA200),
	}, ",")
}

// historicalCSV renders the report with the fixed header order.
func historicalCSV(series []HistoricalRecord) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{
		"date", "open", "high", "low", "close", "volume",
		"twapOpen", "twapHigh", "twapLow", "twapClose",
		"sma50", "sma200", "lwma15", "lwma50",
	})
	for _, rec := range series {
		w.Write([]string{
			rec.Date.String(),
			num(rec.Open), num(rec.High), num(rec.Low), num(rec.Close), num(rec.Volume),
			num(rec.TwapOpen), num(rec.TwapHigh), num(rec.TwapLow), num(rec.TwapClose),
			num(rec.SMA50), num(rec.SMA200), num(rec.LWMA15), num(rec.LWMA50),
		})
	}
	w.Flush()
	return buf.Bytes()
}

// num formats a value the way the JSON encoder would: no trailing
// zeros, no exponent for typical price magnitudes.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
