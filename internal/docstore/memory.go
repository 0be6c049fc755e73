package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"pocketheist.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory is a process-local Store.
type InMemory struct {
	mu   sync.RWMutex
	cols map[string]map[string]json.RawMessage
	now  func() time.Time
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		cols: make(map[string]map[string]json.RawMessage),
		now:  time.Now,
	}
}

// WithClock overrides the server clock used for ServerTimestamp fields.
func (s *InMemory) WithClock(fn func() time.Time) *InMemory {
	s.now = fn
	return s
}

func (s *InMemory) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("list", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.cols[collection]
	docs := make([]Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, Document{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *InMemory) WriteNew(ctx context.Context, collection string, record any) (string, error) {
	id := ids.New()
	if err := s.WriteAt(ctx, collection, id, record); err != nil {
		return "", Wrap("write", collection, err)
	}
	return id, nil
}

func (s *InMemory) WriteAt(ctx context.Context, collection, key string, record any) error {
	if err := ctx.Err(); err != nil {
		return Wrap("write", collection, err)
	}
	if key == "" {
		return Wrap("write", collection, errors.New("empty key"))
	}
	data, err := Encode(record, s.now())
	if err != nil {
		return Wrap("write", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]json.RawMessage)
		s.cols[collection] = col
	}
	col[key] = data
	return nil
}
