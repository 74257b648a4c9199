package storage

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// storeFactories lets every conformance test run against both
// implementations.
func storeFactories(t *testing.T) map[string]func(t *testing.T) CrawlStore {
	t.Helper()
	return map[string]func(t *testing.T) CrawlStore{
		"memory": func(t *testing.T) CrawlStore {
			return NewMemoryStore()
		},
		"badger": func(t *testing.T) CrawlStore {
			store, err := NewBadgerStore(t.TempDir(), "example.com", testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestCrawlStore_MarkSeen(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			added, err := store.MarkSeen("https://example.com/a")
			require.NoError(t, err)
			assert.True(t, added, "first mark should report newly added")

			added, err = store.MarkSeen("https://example.com/a")
			require.NoError(t, err)
			assert.False(t, added, "second mark should report already present")

			seen, err := store.Seen("https://example.com/a")
			require.NoError(t, err)
			assert.True(t, seen)

			seen, err = store.Seen("https://example.com/other")
			require.NoError(t, err)
			assert.False(t, seen)
		})
	}
}

func TestCrawlStore_SeenCount(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			for i := 0; i < 5; i++ {
				_, err := store.MarkSeen(fmt.Sprintf("https://example.com/p%d", i))
				require.NoError(t, err)
			}
			// Duplicate marks must not inflate the count.
			_, err := store.MarkSeen("https://example.com/p0")
			require.NoError(t, err)

			count, err := store.SeenCount()
			require.NoError(t, err)
			assert.Equal(t, 5, count)
		})
	}
}

func TestCrawlStore_LocalPath(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			_, ok := store.LocalPath("https://example.com/a")
			assert.False(t, ok)

			require.NoError(t, store.SetLocalPath("https://example.com/a", "pages/a/index.html"))

			rel, ok := store.LocalPath("https://example.com/a")
			assert.True(t, ok)
			assert.Equal(t, "pages/a/index.html", rel)
		})
	}
}

func TestCrawlStore_ConcurrentMarkSeen(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			const goroutines = 16
			var added atomicCounter
			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					isNew, err := store.MarkSeen("https://example.com/contested")
					assert.NoError(t, err)
					if isNew {
						added.inc()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, added.get(), "exactly one goroutine should win the insert")
		})
	}
}

type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *atomicCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
