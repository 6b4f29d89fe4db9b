package table

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics strips combining marks so the Finnish ä/ö/å in source headers
// become a/o/a (NFD, drop Mn, NFC).
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// placeholderCol matches header cells pandas-style exports emit for columns
// without a real name ("Unnamed: 3" normalizes to "unnamed:_3").
var placeholderCol = regexp.MustCompile(`^unnamed[:_]?[_0-9]*$`)

// NormalizeColumn canonicalizes a single column name: trim, lowercase,
// internal whitespace to underscores, diacritics folded to their base letter.
func NormalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "_")
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return folded
}

// Normalize rewrites every column name to canonical form and drops columns
// that carry no data: placeholder/unnamed headers and columns empty in every
// row. Remaining column order is preserved and no row is dropped.
func Normalize(t *Table) *Table {
	keep := make([]int, 0, len(t.Columns))
	names := make([]string, 0, len(t.Columns))

	for i, col := range t.Columns {
		name := NormalizeColumn(col)
		if name == "" || placeholderCol.MatchString(name) {
			continue
		}
		if columnEmpty(t, i) {
			continue
		}
		keep = append(keep, i)
		names = append(names, name)
	}

	out := &Table{Columns: names, Rows: make([][]string, len(t.Rows))}
	for ri, row := range t.Rows {
		cells := make([]string, len(keep))
		for ci, src := range keep {
			if src < len(row) {
				cells[ci] = row[src]
			}
		}
		out.Rows[ri] = cells
	}
	return out
}

func columnEmpty(t *Table, idx int) bool {
	if len(t.Rows) == 0 {
		return false
	}
	for _, row := range t.Rows {
		if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
			return false
		}
	}
	return true
}
