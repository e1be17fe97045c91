// Package provider implements the upstream end-of-day market-data
// client. The upstream speaks a quandl-shaped REST API: one dataset
// endpoint per ticker with optional date-window and column filters,
// plus a metadata endpoint exposing the oldest available date.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"stockgraphv1/internal/apperr"
	"stockgraphv1/internal/model"
)

// Config configures the upstream client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches daily datasets over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates an upstream client. A zero timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// dataResponse is the dataset endpoint's envelope.
type dataResponse struct {
	DatasetData struct {
		StartDate model.Day   `json:"start_date"`
		EndDate   model.Day   `json:"end_date"`
		Data      []model.Row `json:"data"`
	} `json:"dataset_data"`
}

// metadataResponse is the metadata endpoint's envelope.
type metadataResponse struct {
	Dataset struct {
		OldestAvailableDate model.Day `json:"oldest_available_date"`
	} `json:"dataset"`
}

// errorResponse is the provider's error payload. The provider-specific
// wrapper message is extracted and the remaining detail is surfaced
// structurally.
type errorResponse struct {
	QuandlError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"quandl_error"`
	Errors map[string]any `json:"errors"`
}

// FetchDailyStats fetches the ordered daily dataset for a ticker. Zero
// days leave the corresponding window bound open; ColumnAll fetches
// every column.
func (c *Client) FetchDailyStats(ctx context.Context, ticker string, start, end model.Day, column model.Column) (model.Dataset, error) {
	params := url.Values{}
	params.Set("order", "asc")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if !start.IsZero() {
		params.Set("start_date", start.String())
	}
	if !end.IsZero() {
		params.Set("end_date", end.String())
	}
	if column != model.ColumnAll {
		params.Set("column_index", fmt.Sprintf("%d", column))
	}

	var resp dataResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/data.json", c.baseURL, url.PathEscape(ticker)), params, &resp); err != nil {
		return model.Dataset{}, err
	}
	return model.Dataset{
		StartDate: resp.DatasetData.StartDate,
		EndDate:   resp.DatasetData.EndDate,
		Data:      resp.DatasetData.Data,
	}, nil
}

// FetchMetadata returns the first day for which the ticker has data.
func (c *Client) FetchMetadata(ctx context.Context, ticker string) (model.Day, error) {
	params := url.Values{}
	params.Set("order", "asc")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var resp metadataResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/metadata.json", c.baseURL, url.PathEscape(ticker)), params, &resp); err != nil {
		return model.Day{}, err
	}
	return resp.Dataset.OldestAvailableDate, nil
}

// getJSON issues the request and decodes the body into out. Non-2xx
// responses are translated into the structured upstream error.
func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build upstream request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "upstream request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errors.Wrap(err, "read upstream response")
	}
	if resp.StatusCode != http.StatusOK {
		return parseUpstreamError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode upstream response")
	}
	return nil
}

// parseUpstreamError extracts the provider's error message and detail.
func parseUpstreamError(status int, body []byte) error {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.QuandlError != nil {
		detail := payload.Errors
		if payload.QuandlError.Code != "" {
			if detail == nil {
				detail = map[string]any{}
			}
			detail["code"] = payload.QuandlError.Code
		}
		return apperr.WithDetail(apperr.ErrUpstream, payload.QuandlError.Message, detail)
	}
	return apperr.New(apperr.ErrUpstream, fmt.Sprintf("upstream returned status %d", status))
}
