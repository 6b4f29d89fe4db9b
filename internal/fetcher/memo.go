package fetcher

import (
	"context"
	"sync"

	"github.com/korvaus-labs/korvaus-cli/internal/table"
)

// Memo caches successful loads for the process lifetime, keyed by source
// identity plus parse options. Concurrent callers for the same key share one
// fetch; failures are not cached so the next call retries. There is no
// eviction: the feed set is small and static.
type Memo struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
}

type memoEntry struct {
	once    sync.Once
	table   *table.Table
	skipped int
	err     error
}

// NewMemo creates an empty memo cache.
func NewMemo() *Memo {
	return &Memo{entries: make(map[string]*memoEntry)}
}

// Load wraps fetcher.Load with memoization.
func (m *Memo) Load(ctx context.Context, f Fetcher, src Source, opts ReadOptions) (*table.Table, int, error) {
	return m.Do(src.CacheKey(opts), func() (*table.Table, int, error) {
		return Load(ctx, f, src, opts)
	})
}

// Do returns the cached result for key, computing it at most once per miss.
func (m *Memo) Do(key string, fn func() (*table.Table, int, error)) (*table.Table, int, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry{}
		m.entries[key] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		e.table, e.skipped, e.err = fn()
		if e.err != nil {
			m.mu.Lock()
			// Drop the failed entry so a later call can retry.
			if m.entries[key] == e {
				delete(m.entries, key)
			}
			m.mu.Unlock()
		}
	})

	return e.table, e.skipped, e.err
}

// Len reports the number of cached loads, for tests and status output.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
