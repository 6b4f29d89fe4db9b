// Package aggregate sums cleaned reimbursement rows over (year, provider)
// breakdowns and prepares display-oriented variants: sorted orders and a
// long-tail collapse into a single "Other" bucket.
package aggregate

import (
	"sort"

	"github.com/korvaus-labs/korvaus-cli/internal/coerce"
)

// OtherLabel is the default label for the collapsed long-tail bucket. The
// Finnish dashboards render it as "Muut".
const OtherLabel = "Other"

// GroupBy selects the aggregation key dimensions.
type GroupBy struct {
	Year     bool
	Provider bool
}

// Entry is one aggregated key with its summed amount. Unused key dimensions
// stay at their zero value.
type Entry struct {
	Year     int     `json:"year,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Amount   float64 `json:"amount"`
}

// Result is an aggregation outcome: exactly one entry per distinct key.
type Result struct {
	By      GroupBy `json:"by"`
	Entries []Entry `json:"entries"`
}

type key struct {
	year     int
	provider string
}

// Sum groups rows by the selected dimensions and sums the amount. Entry order
// follows first appearance in the input; callers wanting a display order use
// SortByYear or SortByAmountDesc.
func Sum(rows []coerce.Row, by GroupBy) *Result {
	sums := make(map[key]float64, len(rows))
	var order []key

	for _, r := range rows {
		k := key{}
		if by.Year {
			k.year = r.Year
		}
		if by.Provider {
			k.provider = r.Provider
		}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += r.Amount
	}

	res := &Result{By: by, Entries: make([]Entry, 0, len(order))}
	for _, k := range order {
		res.Entries = append(res.Entries, Entry{Year: k.year, Provider: k.provider, Amount: sums[k]})
	}
	return res
}

// SortByYear orders entries by ascending year, then provider.
func (r *Result) SortByYear() *Result {
	sort.SliceStable(r.Entries, func(i, j int) bool {
		if r.Entries[i].Year != r.Entries[j].Year {
			return r.Entries[i].Year < r.Entries[j].Year
		}
		return r.Entries[i].Provider < r.Entries[j].Provider
	})
	return r
}

// SortByAmountDesc orders entries by descending amount, breaking ties by
// provider then year for stable output.
func (r *Result) SortByAmountDesc() *Result {
	sort.SliceStable(r.Entries, func(i, j int) bool {
		if r.Entries[i].Amount != r.Entries[j].Amount {
			return r.Entries[i].Amount > r.Entries[j].Amount
		}
		if r.Entries[i].Provider != r.Entries[j].Provider {
			return r.Entries[i].Provider < r.Entries[j].Provider
		}
		return r.Entries[i].Year < r.Entries[j].Year
	})
	return r
}

// Lookup returns the summed amount for a key, for tests and callers that need
// point access.
func (r *Result) Lookup(year int, provider string) (float64, bool) {
	for _, e := range r.Entries {
		if e.Year == year && e.Provider == provider {
			return e.Amount, true
		}
	}
	return 0, false
}

// CollapseTail keeps the keepN largest entries of a single-dimension provider
// breakdown and replaces the remainder with one synthetic entry whose amount
// is their sum, labeled label (OtherLabel when empty). Input with keepN or
// fewer entries is returned sorted but otherwise unchanged.
func CollapseTail(r *Result, keepN int, label string) *Result {
	if label == "" {
		label = OtherLabel
	}

	sorted := &Result{By: r.By, Entries: append([]Entry(nil), r.Entries...)}
	sorted.SortByAmountDesc()

	if keepN < 0 {
		keepN = 0
	}
	if len(sorted.Entries) <= keepN {
		return sorted
	}

	var tail float64
	for _, e := range sorted.Entries[keepN:] {
		tail += e.Amount
	}

	out := &Result{By: r.By, Entries: append([]Entry(nil), sorted.Entries[:keepN]...)}
	out.Entries = append(out.Entries, Entry{Provider: label, Amount: tail})
	return out
}
