// Package subcache remembers which product/phone pairs were recently
// submitted so the widget does not send the same request twice in a day.
//
// The cache is advisory. It lives in one namespaced entry of the client's
// durable storage and has no server-side counterpart.
package subcache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/phone"
)

const (
	// StorageKey is the single durable entry holding all submissions.
	StorageKey = "klaviyo_bis_submissions"

	// Cooldown is how long a product/phone pair stays blocked after a submit.
	Cooldown = 24 * time.Hour
)

var errEmpty = errors.New("empty")

// Storage is the durable key/value space the cache persists into.
// Load returns nil data and a nil error for a key that was never saved.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Cache maps "productId-phoneDigits" to the last submission time in ms.
type Cache struct {
	mu      sync.Mutex
	storage Storage
	entries map[string]int64
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New loads the current entry from storage. A missing, unreadable or
// corrupt entry yields an empty cache.
func New(ctx context.Context, storage Storage, opts ...Option) *Cache {
	c := &Cache{
		storage: storage,
		entries: map[string]int64{},
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if loaded, err := c.load(ctx); err == nil {
		c.entries = loaded
	} else if !errors.Is(err, errEmpty) {
		c.logger.Warn("could not read submission cache", zap.Error(err))
	}
	return c
}

// Key builds the cache key for a product and phone in any format.
func Key(productID, phoneNumber string) string {
	return productID + "-" + phone.Digits(phoneNumber)
}

// CanSubmit reports whether the pair has no entry or its entry is older
// than Cooldown.
func (c *Cache) CanSubmit(productID, phoneCanonical string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.entries[Key(productID, phoneCanonical)]
	if !ok {
		return true
	}
	return c.now().Sub(time.UnixMilli(last)) > Cooldown
}

// MarkSubmitted records the current time for the pair. The in-memory mark
// always sticks; persisting it is best effort.
func (c *Cache) MarkSubmitted(ctx context.Context, productID, phoneCanonical string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(productID, phoneCanonical)
	c.entries[key] = c.now().UnixMilli()

	// Merge with whatever another tab or process wrote since we loaded.
	if stored, err := c.load(ctx); err == nil {
		for k, ts := range stored {
			if ts > c.entries[k] {
				c.entries[k] = ts
			}
		}
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn("could not encode submission cache", zap.Error(err))
		return
	}
	if err := c.storage.Save(ctx, StorageKey, data); err != nil {
		c.logger.Warn("could not save submission cache", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) load(ctx context.Context) (map[string]int64, error) {
	data, err := c.storage.Load(ctx, StorageKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmpty
	}

	entries := map[string]int64{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MemoryStorage is a Storage that lives only as long as the process.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}
