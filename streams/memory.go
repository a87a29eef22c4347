package streams

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string][]Record
	seq     int64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]Record),
		now:     time.Now,
	}
}

// Append adds record to stream
func (s *MemoryStore) Append(_ context.Context, stream string, record map[string]any) (string, error) {
	if err := ValidateName(stream); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := s.now().UTC()
	id := fmt.Sprintf("%d-%d", now.UnixMilli(), s.seq)
	data := make(map[string]any, len(record))
	for k, v := range record {
		data[k] = v
	}
	s.streams[stream] = append(s.streams[stream], Record{ID: id, Time: now, Data: data})
	return id, nil
}

// Read returns up to limit records, newest first
func (s *MemoryStore) Read(_ context.Context, stream string, limit int64) ([]Record, error) {
	if err := ValidateName(stream); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.streams[stream]
	n := int(clampLimit(limit))
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]Record, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
