package fetcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/korvaus-labs/korvaus-cli/internal/table"
)

// Attempt records one failed fetch strategy for diagnostics.
type Attempt struct {
	Strategy string `json:"strategy"`
	URL      string `json:"url"`
	Err      string `json:"error"`
}

// IngestError is returned when every fetch strategy is exhausted. Its message
// concatenates each strategy's failure so the presentation layer can show the
// user what to fix; the caller should offer a local-file upload as recovery.
type IngestError struct {
	Source   Source
	Attempts []Attempt
}

func (e *IngestError) Error() string {
	var b strings.Builder
	b.WriteString("failed to load " + e.Source.Identity() + ":")
	for _, a := range e.Attempts {
		b.WriteString("\n- " + a.Strategy + " (" + a.URL + "): " + a.Err)
	}
	return b.String()
}

// Load parses a source into a raw table, trying strategies in order and
// stopping at the first success:
//  1. direct fetch and parse of the source URL
//  2. rewrite of a hosting-page URL to its raw-content equivalent, then 1
//  3. one-shot GET of the original URL read fully into memory, decoded as
//     text, parsed with lazy quoting
//
// Local-file sources parse directly without the fallback chain. The returned
// int counts rows skipped under the bad-line policy.
func Load(ctx context.Context, f Fetcher, src Source, opts ReadOptions) (*table.Table, int, error) {
	if !src.Remote() {
		file, err := os.Open(src.Path)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "load: open %s", src.Path)
		}
		defer file.Close() //nolint:errcheck
		return ParseTable(file, opts)
	}

	log := zap.L().With(zap.String("source", src.Identity()))
	var attempts []Attempt

	// Strategy 1: direct fetch and parse.
	t, skipped, err := fetchAndParse(ctx, f, src.URL, opts)
	if err == nil {
		return t, skipped, nil
	}
	attempts = append(attempts, Attempt{Strategy: "direct", URL: src.URL, Err: err.Error()})
	log.Warn("direct fetch failed", zap.Error(err))

	// Strategy 2: raw-content URL rewrite.
	if raw, ok := RawContentURL(src.URL); ok {
		t, skipped, err = fetchAndParse(ctx, f, raw, opts)
		if err == nil {
			log.Info("loaded via raw-content rewrite", zap.String("raw_url", raw))
			return t, skipped, nil
		}
		attempts = append(attempts, Attempt{Strategy: "raw-rewrite", URL: raw, Err: err.Error()})
		log.Warn("raw-content rewrite failed", zap.String("raw_url", raw), zap.Error(err))
	}

	// Strategy 3: read the whole body into memory and parse leniently.
	lenient := opts
	lenient.LazyQuotes = true
	t, skipped, err = fetchBufferedAndParse(ctx, f, src.URL, lenient)
	if err == nil {
		log.Info("loaded via buffered lenient parse")
		return t, skipped, nil
	}
	attempts = append(attempts, Attempt{Strategy: "buffered", URL: src.URL, Err: err.Error()})

	return nil, 0, &IngestError{Source: src, Attempts: attempts}
}

func fetchAndParse(ctx context.Context, f Fetcher, url string, opts ReadOptions) (*table.Table, int, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close() //nolint:errcheck
	return ParseTable(body, opts)
}

func fetchBufferedAndParse(ctx context.Context, f Fetcher, url string, opts ReadOptions) (*table.Table, int, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "read body")
	}
	return ParseTable(bytes.NewReader(data), opts)
}
