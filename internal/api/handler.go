// Package api exposes the chart backend over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"stockgraphv1/internal/apperr"
	"stockgraphv1/internal/eod"
	"stockgraphv1/internal/model"
	"stockgraphv1/internal/report"
	"stockgraphv1/internal/tickers"
)

const (
	msgBadTopParam    = "You provided %s for the number of returned results. This is not a valid number."
	msgUnknownTicker  = "You have submitted an incorrect ticker code. Please check your ticker codes and try again"
	msgMissingStart   = "Start date parameter is missing. Please check your API syntax and try again"
	defaultMDAWindow  = 200
	maxBatchedTickers = 50
)

// Handler routes chart API requests to the domain services.
type Handler struct {
	eod     *eod.Service
	reports *report.Service
	tickers *tickers.Store
	log     *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(eodSvc *eod.Service, reports *report.Service, store *tickers.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{eod: eodSvc, reports: reports, tickers: store, log: log}
}

// RegisterRoutes registers the chart API routes. Static paths must
// come before the {ticker} wildcard.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/tickers", h.SearchTickers).Methods("GET")
	r.HandleFunc("/api/tickers/close-prices", h.GetClosePrices).Methods("GET")
	r.HandleFunc("/api/tickers/multi200mda", h.GetMovingDayAverages).Methods("GET")
	r.HandleFunc("/api/tickers/{ticker}", h.GetTicker).Methods("GET")
	r.HandleFunc("/api/tickers/{ticker}/close-price", h.GetClosePrice).Methods("GET")
	r.HandleFunc("/api/tickers/{ticker}/200mda", h.GetMovingDayAverage).Methods("GET")
	r.HandleFunc("/api/tickers/{ticker}/download/twap.{format}", h.DownloadHistorical).Methods("GET")
	r.HandleFunc("/api/tickers/{ticker}/download/alerts.dat", h.DownloadAlerts).Methods("GET")
}

// SearchTickers handles GET /api/tickers?search=&top=.
func (h *Handler) SearchTickers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	topParam := r.URL.Query().Get("top")

	top := 0
	if topParam != "" {
		n, err := strconv.Atoi(topParam)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf(msgBadTopParam, topParam),
			})
			return
		}
		top = n
	}

	list, err := h.tickers.Search(search, top)
	if err != nil {
		h.log.Error("ticker search failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetTicker handles GET /api/tickers/{ticker}.
func (h *Handler) GetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["ticker"]

	t, ok, err := h.tickers.Get(symbol)
	if err != nil {
		h.log.Error("ticker lookup failed", "ticker", symbol, "err", err)
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgUnknownTicker})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetClosePrice handles GET /api/tickers/{ticker}/close-price.
func (h *Handler) GetClosePrice(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	cp, err := h.eod.GetClosePrice(r.Context(), ticker, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": map[string]any{
			"ticker":    ticker,
			"dateClose": cp,
		},
	})
}

// GetClosePrices handles GET /api/tickers/close-prices?symbols=A,B.
func (h *Handler) GetClosePrices(w http.ResponseWriter, r *http.Request) {
	symbols := splitTickers(r.URL.Query().Get("symbols"))
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	results := h.eod.GetClosePrices(r.Context(), symbols, start, end)
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": map[string]any{
			"dateClose": results,
		},
	})
}

// mdaPayload is the wire shape of a successful moving-day-average
// lookup on the single-ticker route.
type mdaPayload struct {
	DMA200 mdaAverage `json:"200dma"`
}

type mdaAverage struct {
	Ticker  string  `json:"ticker"`
	Average float64 `json:"average"`
}

type mdaResponse struct {
	Succeeded bool          `json:"succeeded"`
	Data      *mdaPayload   `json:"data,omitempty"`
	Err       *apperr.Error `json:"error,omitempty"`
}

// GetMovingDayAverage handles GET /api/tickers/{ticker}/200mda.
func (h *Handler) GetMovingDayAverage(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	start, days, err := parseMDAQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result := h.eod.GetMovingDayAverage(r.Context(), ticker, start, days)
	resp := mdaResponse{Succeeded: result.Succeeded, Err: result.Err}
	if result.Succeeded {
		resp.Data = &mdaPayload{DMA200: mdaAverage{
			Ticker:  result.Data.Ticker,
			Average: result.Data.Average,
		}}
	}
	status := http.StatusOK
	if !result.Succeeded {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}

// multiMDAEntry is the per-ticker wire shape on the batched route,
// where the payload collapses to the bare average.
type multiMDAEntry struct {
	Succeeded bool          `json:"succeeded"`
	Data      *bareAverage  `json:"data,omitempty"`
	Err       *apperr.Error `json:"error,omitempty"`
}

type bareAverage struct {
	Average float64 `json:"average"`
}

// GetMovingDayAverages handles GET /api/tickers/multi200mda?ticker=A,B.
func (h *Handler) GetMovingDayAverages(w http.ResponseWriter, r *http.Request) {
	symbols := splitTickers(r.URL.Query().Get("ticker"))
	startParam := r.URL.Query().Get("startDate")
	if startParam == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": msgMissingStart})
		return
	}
	start, days, err := parseMDAQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	results := h.eod.GetMovingDayAverages(r.Context(), symbols, start, days)
	resp := make(map[string]multiMDAEntry, len(results))
	for ticker, result := range results {
		entry := multiMDAEntry{Succeeded: result.Succeeded, Err: result.Err}
		if result.Succeeded {
			entry.Data = &bareAverage{Average: result.Data.Average}
		}
		resp[ticker] = entry
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadHistorical handles GET /api/tickers/{ticker}/download/twap.{format}.
func (h *Handler) DownloadHistorical(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	file, err := h.reports.GetHistoricalReport(r.Context(), vars["ticker"], vars["format"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeAttachment(w, file.FileName, file.Content)
}

// DownloadAlerts handles GET /api/tickers/{ticker}/download/alerts.dat.
func (h *Handler) DownloadAlerts(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	content, err := h.reports.GetAlertReport(r.Context(), ticker)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAttachment(w, "alerts.dat", []byte(content))
}

// ──────────────────────────── helpers ────────────────────────────

// parseWindow reads the optional startDate/endDate query parameters.
// An absent date stays an open bound; a malformed one is rejected.
func parseWindow(r *http.Request) (start, end model.Day, err error) {
	q := r.URL.Query()
	if start, err = parseDayParam(q.Get("startDate")); err != nil {
		return model.Day{}, model.Day{}, err
	}
	if end, err = parseDayParam(q.Get("endDate")); err != nil {
		return model.Day{}, model.Day{}, err
	}
	return start, end, nil
}

// parseMDAQuery reads startDate and the optional days override.
func parseMDAQuery(r *http.Request) (model.Day, int, error) {
	q := r.URL.Query()

	start, err := parseDayParam(q.Get("startDate"))
	if err != nil {
		return model.Day{}, 0, err
	}

	days := defaultMDAWindow
	if s := q.Get("days"); s != "" {
		if n, aerr := strconv.Atoi(s); aerr == nil && n > 0 {
			days = n
		}
	}
	return start, days, nil
}

func parseDayParam(s string) (model.Day, error) {
	if s == "" {
		return model.Day{}, nil
	}
	d, err := model.ParseDay(s)
	if err != nil {
		return model.Day{}, apperr.New(apperr.ErrMissingParameter,
			fmt.Sprintf("Invalid date %q. Dates must be formatted YYYY-MM-DD.", s))
	}
	return d, nil
}

// splitTickers parses a comma-separated symbol list, dropping empties
// and bounding the batch size.
func splitTickers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
		if len(out) == maxBatchedTickers {
			break
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a failure to the structured error body. Every
// domain failure surfaces as 404 with the error's message and detail.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusNotFound, asAppError(err))
}

func asAppError(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.New(apperr.ErrUpstream, err.Error())
}

// writeAttachment streams a generated report for download.
func writeAttachment(w http.ResponseWriter, fileName string, content []byte) {
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
