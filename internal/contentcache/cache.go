// Package contentcache is a two-tier content-addressed store for generated
// flashcards: a bounded in-memory fast tier in front of a durable file tier.
// Caching is strictly best-effort; durable-tier failures are logged and
// swallowed so they can never fail or block the job pipeline.
package contentcache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/khusa71/kardu/internal/flashcard"
)

const (
	sweepInterval = 10 * time.Minute

	// sourceExcerptLen truncates the diagnostic source-text excerpt.
	sourceExcerptLen = 200
)

// Entry is one immutable cache record: it is replaced or evicted, never
// mutated in place.
type Entry struct {
	Hash          string                `json:"hash"`
	Cards         []flashcard.Flashcard `json:"flashcards"`
	Subject       string                `json:"subject"`
	Difficulty    flashcard.Difficulty  `json:"difficulty"`
	FocusAreas    []string              `json:"focus_areas,omitempty"`
	SourceExcerpt string                `json:"source_excerpt,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Metadata is the generation-parameter snapshot stored alongside cards.
type Metadata struct {
	Subject    string
	Difficulty flashcard.Difficulty
	FocusAreas []string
	SourceText string
}

type Cache struct {
	fast    *fastTier
	durable *FileStore
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache with a durable tier rooted at durableDir.
func New(durableDir string) (*Cache, error) {
	store, err := NewFileStore(durableDir)
	if err != nil {
		return nil, err
	}
	return &Cache{
		fast:    newFastTier(time.Now),
		durable: store,
		now:     time.Now,
		stop:    make(chan struct{}),
	}, nil
}

// Get returns cached flashcards for hash. A durable hit repopulates the
// fast tier.
func (c *Cache) Get(hash string) ([]flashcard.Flashcard, bool) {
	if entry, ok := c.fast.get(hash); ok {
		return entry.Cards, true
	}

	entry, ok, err := c.durable.Get(hash)
	if err != nil {
		slog.Default().Warn("durable cache read failed", "hash", hash, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	c.fast.put(entry)
	return entry.Cards, true
}

// Put writes to both tiers. A durable write failure is logged and swallowed.
func (c *Cache) Put(hash string, cards []flashcard.Flashcard, meta Metadata) {
	excerpt := meta.SourceText
	if len(excerpt) > sourceExcerptLen {
		excerpt = excerpt[:sourceExcerptLen]
	}
	entry := Entry{
		Hash:          hash,
		Cards:         cards,
		Subject:       meta.Subject,
		Difficulty:    meta.Difficulty,
		FocusAreas:    meta.FocusAreas,
		SourceExcerpt: excerpt,
		CreatedAt:     c.now(),
	}

	c.fast.put(entry)
	if err := c.durable.Put(entry); err != nil {
		slog.Default().Warn("durable cache write failed", "hash", hash, "error", err)
	}
}

// Start launches the periodic fast-tier sweeper.
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.fast.sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
