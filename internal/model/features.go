package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

var (
	// ErrColumnExists is returned when a feature column name is already taken.
	ErrColumnExists = errors.New("feature column already exists")
	// ErrMisaligned is returned when a column length differs from the date index.
	ErrMisaligned = errors.New("feature column not aligned with date index")
)

// FeatureTable holds named feature columns aligned 1:1 with a series' dates.
// An invalid null.Float marks an undefined cell.
type FeatureTable struct {
	Ticker string
	Dates  []time.Time

	names   []string
	columns map[string][]null.Float
}

// NewFeatureTable creates an empty table over the given date index.
func NewFeatureTable(ticker string, dates []time.Time) *FeatureTable {
	return &FeatureTable{
		Ticker:  ticker,
		Dates:   dates,
		columns: make(map[string][]null.Float),
	}
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int { return len(t.Dates) }

// Names returns column names in insertion order.
func (t *FeatureTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Column returns the values of a column.
func (t *FeatureTable) Column(name string) ([]null.Float, bool) {
	col, ok := t.columns[name]
	return col, ok
}

// Add appends a column. Names must be unique and values aligned with Dates.
func (t *FeatureTable) Add(name string, values []null.Float) error {
	if _, ok := t.columns[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrColumnExists)
	}
	if len(values) != len(t.Dates) {
		return fmt.Errorf("%s: %d values for %d rows: %w", name, len(values), len(t.Dates), ErrMisaligned)
	}
	t.names = append(t.names, name)
	t.columns[name] = values
	return nil
}

// Merge appends every column of other, preserving its column order.
func (t *FeatureTable) Merge(other *FeatureTable) error {
	for _, name := range other.names {
		if err := t.Add(name, other.columns[name]); err != nil {
			return err
		}
	}
	return nil
}

// Row returns the cells of row i keyed by column name.
func (t *FeatureTable) Row(i int) map[string]null.Float {
	row := make(map[string]null.Float, len(t.names))
	for _, name := range t.names {
		row[name] = t.columns[name][i]
	}
	return row
}
