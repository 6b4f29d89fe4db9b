// Package coerce converts the raw string cells behind a role mapping into
// typed values: integer years and decimal euro amounts in the Finnish locale
// format (comma decimal separator, currency symbols, grouping spaces).
// Rows whose year or amount cannot be parsed are dropped, counted, and never
// surfaced as errors.
package coerce

import (
	"strconv"
	"strings"

	"github.com/korvaus-labs/korvaus-cli/internal/roles"
	"github.com/korvaus-labs/korvaus-cli/internal/table"
)

// Row is one cleaned record. Amount keeps its sign: the feeds contain
// negative correction entries.
type Row struct {
	Provider string  `json:"provider"`
	Year     int     `json:"year"`
	Amount   float64 `json:"amount"`
}

// ParseYear extracts the first run of exactly four consecutive digits, falling
// back to a whole-string integer parse. ok is false when neither yields a year.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	run := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			run++
			continue
		}
		if run == 4 {
			y, _ := strconv.Atoi(s[i-4 : i])
			return y, true
		}
		run = 0
	}
	if run == 4 {
		y, _ := strconv.Atoi(s[len(s)-4:])
		return y, true
	}

	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// ParseAmount normalizes a locale-formatted currency string to a float64.
// Everything except digits, comma, period, and a leading minus is stripped;
// the comma decimal separator becomes a period; a lone "." is zero.
func ParseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if cleaned == "" || cleaned == "-" {
		return 0, false
	}
	if cleaned == "." {
		return 0, true
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Rows coerces every row of the normalized table through the role mapping.
// A row survives only when both year and amount parse; the provider cell is
// trimmed unconditionally and may be empty. dropped counts discarded rows.
func Rows(t *table.Table, m roles.Mapping) (rows []Row, dropped int) {
	provIdx := t.ColumnIndex(m[roles.Provider])
	yearIdx := t.ColumnIndex(m[roles.Year])
	amountIdx := t.ColumnIndex(m[roles.Amount])

	for _, rec := range t.Rows {
		year, okY := ParseYear(cell(rec, yearIdx))
		amount, okA := ParseAmount(cell(rec, amountIdx))
		if !okY || !okA {
			dropped++
			continue
		}
		rows = append(rows, Row{
			Provider: strings.TrimSpace(cell(rec, provIdx)),
			Year:     year,
			Amount:   amount,
		})
	}
	return rows, dropped
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}
