package pipeline

import (
	"github.com/korvaus-labs/korvaus-cli/internal/config"
	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
)

// BuildSource converts a configured source into the fetcher's source identity
// and parse options.
func BuildSource(sc config.SourceConfig) (fetcher.Source, fetcher.ReadOptions) {
	src := fetcher.Source{Name: sc.Name, URL: sc.URL, Path: sc.Path}

	opts := fetcher.ReadOptions{Encoding: sc.Encoding}
	for _, r := range sc.Delimiter {
		opts.Delimiter = r
		break
	}
	switch sc.BadLines {
	case "fail":
		opts.BadLines = fetcher.FailBadLines
	case "skip", "":
		opts.BadLines = fetcher.SkipBadLines
	}
	return src, opts
}
