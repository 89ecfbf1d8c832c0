package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"quantamental/internal/model"
)

// writeFeaturesCSV writes one row per (ticker, date), tickers in sorted order.
// Undefined cells are empty.
func writeFeaturesCSV(w io.Writer, tables map[string]*model.FeatureTable) error {
	tickers := make([]string, 0, len(tables))
	for t := range tables {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	cw := csv.NewWriter(w)
	var header []string
	for _, ticker := range tickers {
		ft := tables[ticker]
		names := ft.Names()
		if header == nil {
			header = append([]string{"ticker", "date"}, names...)
			if err := cw.Write(header); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
		}
		for i := 0; i < ft.Len(); i++ {
			row := ft.Row(i)
			rec := make([]string, 0, len(names)+2)
			rec = append(rec, ticker, ft.Dates[i].Format(model.DateLayout))
			for _, name := range names {
				v := row[name]
				if !v.Valid {
					rec = append(rec, "")
					continue
				}
				rec = append(rec, strconv.FormatFloat(v.Float64, 'g', -1, 64))
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write %s row %d: %w", ticker, i, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
