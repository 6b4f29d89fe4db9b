package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korvaus-labs/korvaus-cli/internal/coerce"
	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
	"github.com/korvaus-labs/korvaus-cli/internal/roles"
)

// Five data rows: one malformed (wrong field count), one with an unparseable
// amount. Under the skip policy three cleaned rows survive.
const dirtyFeed = "Palveluntuottaja;Vuosi;Korvaus euroa\n" +
	"Mehiläinen;2011;1 234,56 €\n" +
	"Terveystalo;2011\n" +
	"Pihlajalinna;2012;ei tietoa\n" +
	"Attendo;2012;-45,00\n" +
	"Mehiläinen;2012;500,00\n"

func newPipeline() *Pipeline {
	return New(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}), fetcher.NewMemo(), nil)
}

func TestRun_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(dirtyFeed))
	}))
	defer srv.Close()

	p := newPipeline()
	res, err := p.Run(context.Background(), fetcher.Source{Name: "kela", URL: srv.URL},
		fetcher.ReadOptions{Encoding: "utf-8"}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"palveluntuottaja", "vuosi", "korvaus_euroa"}, res.Normalized.Columns)
	assert.Equal(t, "palveluntuottaja", res.Roles[roles.Provider])

	// 5 data rows: one skipped at parse, one dropped at coercion.
	require.Len(t, res.Rows, 3)
	assert.Equal(t, 1, res.SkippedLines)
	assert.Equal(t, 1, res.DroppedRows)

	v, ok := res.ByYear.Lookup(2011, "")
	require.True(t, ok)
	assert.InDelta(t, 1234.56, v, 1e-9)

	v, ok = res.ByYearProvider.Lookup(2012, "Mehiläinen")
	require.True(t, ok)
	assert.InDelta(t, 500.0, v, 1e-9)
}

func TestRun_MemoizesAcrossRuns(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(dirtyFeed))
	}))
	defer srv.Close()

	p := newPipeline()
	src := fetcher.Source{Name: "kela", URL: srv.URL}
	opts := fetcher.ReadOptions{Encoding: "utf-8"}

	_, err := p.Run(context.Background(), src, opts, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), src, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
}

func TestRun_AmbiguousHaltsBeforeCoercion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sarake1;sarake2\nx;y\n"))
	}))
	defer srv.Close()

	p := newPipeline()
	res, err := p.Run(context.Background(), fetcher.Source{Name: "odd", URL: srv.URL},
		fetcher.ReadOptions{Encoding: "utf-8"}, nil)
	require.Error(t, err)

	var amb *roles.AmbiguousMappingError
	require.True(t, errors.As(err, &amb))

	// The result is still returned for manual mapping.
	require.NotNil(t, res)
	assert.Equal(t, []string{"sarake1", "sarake2"}, res.Normalized.Columns)
	assert.Empty(t, res.Rows)
	assert.Nil(t, res.ByYear)
}

func TestRun_OverridesResolveAmbiguity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nimi;ajankohta;arvo\nMehiläinen;2011;10,5\n"))
	}))
	defer srv.Close()

	p := newPipeline()
	res, err := p.Run(context.Background(), fetcher.Source{Name: "odd", URL: srv.URL},
		fetcher.ReadOptions{Encoding: "utf-8"},
		roles.Mapping{roles.Provider: "nimi", roles.Year: "ajankohta", roles.Amount: "arvo"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, coerce.Row{Provider: "Mehiläinen", Year: 2011, Amount: 10.5}, res.Rows[0])
}

func TestRun_FetchFailurePropagatesIngestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := newPipeline()
	_, err := p.Run(context.Background(), fetcher.Source{Name: "kela", URL: srv.URL},
		fetcher.ReadOptions{Encoding: "utf-8"}, nil)
	require.Error(t, err)

	var ingest *fetcher.IngestError
	assert.True(t, errors.As(err, &ingest))
}

func TestFilterRows(t *testing.T) {
	rows := []coerce.Row{
		{Provider: "A", Year: 2011, Amount: 1},
		{Provider: "B", Year: 2012, Amount: 2},
		{Provider: "A", Year: 2013, Amount: 3},
	}

	assert.Len(t, FilterRows(rows, 2012, 2013, nil), 2)
	assert.Len(t, FilterRows(rows, 0, 0, []string{"A"}), 2)
	assert.Len(t, FilterRows(rows, 2012, 0, []string{"A"}), 1)
	assert.Len(t, FilterRows(rows, 0, 0, nil), 3)
}
