package model

import (
	"encoding/json"
	"fmt"
)

// Column selects a single upstream data column, following the
// provider's column indexing for daily bars.
type Column int

const (
	// ColumnAll requests every column of a daily bar.
	ColumnAll Column = 0

	ColumnOpen   Column = 1
	ColumnHigh   Column = 2
	ColumnLow    Column = 3
	ColumnClose  Column = 4
	ColumnVolume Column = 5
)

// Row is one day of upstream data: the calendar day plus the numeric
// columns returned for it. A column-filtered fetch yields a single
// value; an unfiltered fetch yields the full open/high/low/close/volume
// vector in column order.
type Row struct {
	Day    Day
	Values []float64
}

// Dataset is the ordered daily data for one ticker over a date window,
// as returned by the upstream provider and by cache-reconciled lookups.
// Data is ascending by day.
type Dataset struct {
	StartDate Day   `json:"start_date"`
	EndDate   Day   `json:"end_date"`
	Data      []Row `json:"data"`
}

// MarshalJSON encodes the row in the provider's wire shape:
// ["2018-01-02", v1, v2, ...].
func (r Row) MarshalJSON() ([]byte, error) {
	cells := make([]any, 0, len(r.Values)+1)
	cells = append(cells, r.Day.String())
	for _, v := range r.Values {
		cells = append(cells, v)
	}
	return json.Marshal(cells)
}

// UnmarshalJSON decodes the provider's ["2018-01-02", v1, ...] shape.
// Null cells (halted listings report some columns as null) decode as 0.
func (r *Row) UnmarshalJSON(b []byte) error {
	var cells []json.RawMessage
	if err := json.Unmarshal(b, &cells); err != nil {
		return err
	}
	if len(cells) == 0 {
		return fmt.Errorf("row: empty data entry")
	}
	var dateStr string
	if err := json.Unmarshal(cells[0], &dateStr); err != nil {
		return fmt.Errorf("row: first cell is not a date: %w", err)
	}
	day, err := ParseDay(dateStr)
	if err != nil {
		return err
	}
	values := make([]float64, 0, len(cells)-1)
	for _, cell := range cells[1:] {
		var v *float64
		if err := json.Unmarshal(cell, &v); err != nil {
			return fmt.Errorf("row %s: non-numeric cell: %w", dateStr, err)
		}
		if v == nil {
			values = append(values, 0)
		} else {
			values = append(values, *v)
		}
	}
	r.Day = day
	r.Values = values
	return nil
}
