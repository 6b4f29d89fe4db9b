package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/korvaus-labs/korvaus-cli/internal/config"
	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
	"github.com/korvaus-labs/korvaus-cli/internal/pipeline"
	"github.com/korvaus-labs/korvaus-cli/internal/roles"
)

// buildPipeline wires the fetcher, memo cache, and keyword table from config.
func buildPipeline() (*pipeline.Pipeline, error) {
	kw := roles.DefaultKeywords()
	if cfg.Roles.KeywordsFile != "" {
		loaded, err := roles.LoadKeywords(cfg.Roles.KeywordsFile)
		if err != nil {
			return nil, err
		}
		kw = loaded
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	return pipeline.New(f, fetcher.NewMemo(), kw), nil
}

// selectSource resolves the --source/--url/--file flags into one source and
// its parse options, with flag-level delimiter/encoding overrides applied.
func selectSource(name, rawURL, path, delimiter, encoding, badLines string) (fetcher.Source, fetcher.ReadOptions, error) {
	var sc config.SourceConfig

	switch {
	case name != "":
		found, ok := cfg.FindSource(name)
		if !ok {
			return fetcher.Source{}, fetcher.ReadOptions{}, eris.Errorf("source %q is not configured", name)
		}
		sc = found
	case rawURL != "":
		sc = config.SourceConfig{Name: "adhoc", URL: rawURL}
	case path != "":
		sc = config.SourceConfig{Name: "upload", Path: path}
	default:
		return fetcher.Source{}, fetcher.ReadOptions{}, eris.New("one of --source, --url, or --file is required")
	}

	if delimiter != "" {
		sc.Delimiter = delimiter
	}
	if encoding != "" {
		sc.Encoding = encoding
	}
	if badLines != "" {
		sc.BadLines = badLines
	}

	src, opts := pipeline.BuildSource(sc)
	return src, opts, nil
}

// roleOverrides builds a mapping from the --provider-col/--year-col/--amount-col flags.
func roleOverrides(providerCol, yearCol, amountCol string) roles.Mapping {
	m := roles.Mapping{}
	if providerCol != "" {
		m[roles.Provider] = providerCol
	}
	if yearCol != "" {
		m[roles.Year] = yearCol
	}
	if amountCol != "" {
		m[roles.Amount] = amountCol
	}
	return m
}
