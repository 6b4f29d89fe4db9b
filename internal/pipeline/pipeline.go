// Package pipeline composes the ingestion stages into one pure run:
// fetch (memoized) → normalize columns → resolve roles → coerce values →
// aggregate. The presentation layer re-invokes Run on every interaction;
// the memo cache is the only state carried between runs.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/korvaus-labs/korvaus-cli/internal/aggregate"
	"github.com/korvaus-labs/korvaus-cli/internal/coerce"
	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
	"github.com/korvaus-labs/korvaus-cli/internal/roles"
	"github.com/korvaus-labs/korvaus-cli/internal/table"
)

// Pipeline runs the full ingestion flow for a source.
type Pipeline struct {
	fetcher  fetcher.Fetcher
	memo     *fetcher.Memo
	keywords roles.Keywords
}

// New creates a pipeline. A nil keyword table falls back to the defaults.
func New(f fetcher.Fetcher, memo *fetcher.Memo, kw roles.Keywords) *Pipeline {
	if memo == nil {
		memo = fetcher.NewMemo()
	}
	if kw == nil {
		kw = roles.DefaultKeywords()
	}
	return &Pipeline{fetcher: f, memo: memo, keywords: kw}
}

// Result is everything a presentation layer needs from one run: the raw and
// normalized previews, the (possibly partial) role mapping, the cleaned rows
// with drop accounting, and the standard aggregates.
type Result struct {
	RunID      string         `json:"run_id"`
	Source     fetcher.Source `json:"source"`
	Raw        *table.Table   `json:"-"`
	Normalized *table.Table   `json:"normalized"`
	Roles      roles.Mapping  `json:"roles"`

	Rows         []coerce.Row `json:"rows,omitempty"`
	DroppedRows  int          `json:"dropped_rows"`
	SkippedLines int          `json:"skipped_lines"`

	ByYear         *aggregate.Result `json:"by_year,omitempty"`
	ByProvider     *aggregate.Result `json:"by_provider,omitempty"`
	ByYearProvider *aggregate.Result `json:"by_year_provider,omitempty"`
}

// Run executes the pipeline for one source. overrides pins roles the caller
// has mapped manually. When role resolution stays ambiguous the returned
// Result still carries the normalized table and partial mapping alongside the
// *roles.AmbiguousMappingError, so the caller can solicit a complete mapping
// and re-run; coercion and aggregation do not happen in that case.
func (p *Pipeline) Run(ctx context.Context, src fetcher.Source, opts fetcher.ReadOptions, overrides roles.Mapping) (*Result, error) {
	log := zap.L().With(zap.String("source", src.Identity()))

	res := &Result{RunID: uuid.New().String(), Source: src}

	raw, skipped, err := p.memo.Load(ctx, p.fetcher, src, opts)
	if err != nil {
		return nil, err
	}
	res.Raw = raw
	res.SkippedLines = skipped
	res.Normalized = table.Normalize(raw)

	mapping, err := roles.Resolve(res.Normalized.Columns, p.keywords, overrides)
	res.Roles = mapping
	if err != nil {
		var amb *roles.AmbiguousMappingError
		if errors.As(err, &amb) {
			log.Warn("role resolution incomplete",
				zap.Any("missing", amb.MissingRoles),
				zap.Strings("columns", amb.Columns),
			)
			return res, err
		}
		return nil, err
	}

	res.Rows, res.DroppedRows = coerce.Rows(res.Normalized, mapping)
	res.ByYear = aggregate.Sum(res.Rows, aggregate.GroupBy{Year: true}).SortByYear()
	res.ByProvider = aggregate.Sum(res.Rows, aggregate.GroupBy{Provider: true}).SortByAmountDesc()
	res.ByYearProvider = aggregate.Sum(res.Rows, aggregate.GroupBy{Year: true, Provider: true}).SortByYear()

	log.Info("pipeline run complete",
		zap.String("run_id", res.RunID),
		zap.Int("rows", len(res.Rows)),
		zap.Int("dropped_rows", res.DroppedRows),
		zap.Int("skipped_lines", res.SkippedLines),
	)
	return res, nil
}

// FilterRows applies the dashboard widget filters ahead of re-aggregation:
// an inclusive year range (zero bounds disable it) and a provider allow-list
// (empty allows all).
func FilterRows(rows []coerce.Row, yearFrom, yearTo int, providers []string) []coerce.Row {
	allow := make(map[string]bool, len(providers))
	for _, pr := range providers {
		allow[pr] = true
	}

	out := make([]coerce.Row, 0, len(rows))
	for _, r := range rows {
		if yearFrom != 0 && r.Year < yearFrom {
			continue
		}
		if yearTo != 0 && r.Year > yearTo {
			continue
		}
		if len(allow) > 0 && !allow[r.Provider] {
			continue
		}
		out = append(out, r)
	}
	return out
}
