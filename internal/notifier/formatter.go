package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"quantamental/internal/calculator"
	"quantamental/internal/model"
	"quantamental/internal/pipeline"
	"quantamental/internal/recorder"
)

// FormatRefreshReport formats a refresh report into a Telegram message.
func FormatRefreshReport(rep *pipeline.Report) string {
	var b strings.Builder

	icon := "✅"
	switch rep.Status() {
	case recorder.StatusPartial:
		icon = "⚠️"
	case recorder.StatusFailed:
		icon = "❌"
	}
	b.WriteString(fmt.Sprintf("%s <b>Quantamental refresh</b> | %s\n\n", icon, rep.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Tickers: %d/%d\n", len(rep.Succeeded), rep.Requested))
	b.WriteString(fmt.Sprintf("Rows: %d\n", rep.Rows))
	if rep.FeatureTables > 0 {
		b.WriteString(fmt.Sprintf("Feature tables: %d\n", rep.FeatureTables))
	}
	if !rep.FinishedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Took: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second)))
	}

	if failed := rep.FailedTickers(); len(failed) > 0 {
		b.WriteString("\n<b>Failed:</b>\n")
		for _, t := range failed {
			b.WriteString(fmt.Sprintf("  %s: %s\n", html.EscapeString(t), html.EscapeString(rep.Failed[t].Error())))
		}
	}
	if rep.Err != nil {
		b.WriteString(fmt.Sprintf("\nError: %s\n", html.EscapeString(rep.Err.Error())))
	}
	return b.String()
}

// FormatStatus formats the last recorded refresh.
func FormatStatus(run *recorder.FetchRun) string {
	var b strings.Builder
	b.WriteString("📦 <b>Last refresh</b>\n\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", run.Status))
	b.WriteString(fmt.Sprintf("Started: %s\n", run.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Tickers: %d/%d\n", run.Succeeded, run.Requested))
	b.WriteString(fmt.Sprintf("Rows: %d\n", run.Rows))
	if len(run.FailedTickers) > 0 {
		b.WriteString(fmt.Sprintf("Failed: %s\n", html.EscapeString(strings.Join(run.FailedTickers, ", "))))
	}
	if run.Note != "" {
		b.WriteString(fmt.Sprintf("Note: %s\n", html.EscapeString(run.Note)))
	}
	return b.String()
}

// FormatFeatureSnapshot formats the latest feature row of a ticker together
// with its 52-week range.
func FormatFeatureSnapshot(series model.PriceSeries, ft *model.FeatureTable) string {
	var b strings.Builder
	ticker := html.EscapeString(series.Ticker)
	if ft.Len() == 0 || series.Len() == 0 {
		return fmt.Sprintf("📈 <b>%s</b>\n\nNo data", ticker)
	}

	last := ft.Len() - 1
	bar := series.Bars[series.Len()-1]
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> | %s\n\n", ticker, ft.Dates[last].Format(model.DateLayout)))
	b.WriteString(fmt.Sprintf("Close: %.2f\n", bar.Close))

	if high, low, err := calculator.HighLow(series.Bars, calculator.TradingDaysPerYear); err == nil {
		b.WriteString(fmt.Sprintf("52w range: %.2f - %.2f", low, high))
		if pos, err := calculator.RangePosition(bar.Close, high, low); err == nil {
			b.WriteString(fmt.Sprintf(" (%.0f%%)", pos*100))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	row := ft.Row(last)
	for _, name := range ft.Names() {
		v := row[name]
		if !v.Valid {
			b.WriteString(fmt.Sprintf("  %s: n/a\n", name))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s: %.4f\n", name, v.Float64))
	}
	return b.String()
}

// HelpText lists the supported commands.
func HelpText() string {
	return "Commands:\n• /refresh - fetch prices and rebuild features\n• /status - last refresh summary\n• /features TICKER - latest feature values"
}
