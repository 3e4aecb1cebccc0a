// Package memory keeps checkpoints in process memory, serialized, with TTL
// expiry and least-recently-used eviction under a byte budget.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	"github.com/flowgraph/gremlin/pkg/serialization"
)

// Saver implements checkpoint.Saver over a guarded map.
type Saver struct {
	mu          sync.Mutex
	entries     map[string]*entry
	currentSize int64
	maxBytes    int64
	defaultTTL  time.Duration
	serializer  *serialization.Serializer
	now         func() time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
	done        chan struct{}
}

// Config holds configuration for Saver
type Config struct {
	DefaultTTL      time.Duration             // zero means 24h
	MaxMemoryMB     int64                     // zero means 1GB
	CleanupInterval time.Duration             // zero means 5m
	Serializer      *serialization.Serializer // defaults to msgpack+zstd
}

// entry keeps the filterable header next to the serialized body so List
// only decodes what it returns.
type entry struct {
	header     checkpoint.Checkpoint
	data       []byte
	size       int64
	expiresAt  time.Time
	accessedAt time.Time
}

// NewSaver creates a saver and starts its expiry sweeper.
func NewSaver(config Config) *Saver {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.MaxMemoryMB == 0 {
		config.MaxMemoryMB = 1024
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Serializer == nil {
		config.Serializer = serialization.Default()
	}

	s := &Saver{
		entries:     make(map[string]*entry),
		maxBytes:    config.MaxMemoryMB * 1024 * 1024,
		defaultTTL:  config.DefaultTTL,
		serializer:  config.Serializer,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.sweep(config.CleanupInterval)
	return s
}

// DefaultSaver creates a Saver with default configuration
func DefaultSaver() *Saver {
	return NewSaver(Config{})
}

// Save stores a checkpoint, replacing any with the same ID.
func (s *Saver) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.serializer.Serialize(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", checkpoint.ErrSaveFailed, err)
	}
	size := int64(len(data))
	if size > s.maxBytes {
		return fmt.Errorf("%w: checkpoint of %dB exceeds the %dB budget",
			checkpoint.ErrSaveFailed, size, s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[cp.ID]; ok {
		s.removeLocked(cp.ID, old)
	}
	if s.currentSize+size > s.maxBytes {
		need := s.currentSize + size - s.maxBytes
		if freed := s.evictLocked(need); freed < need {
			return fmt.Errorf("%w: memory limit exceeded: current=%dB, max=%dB",
				checkpoint.ErrSaveFailed, s.currentSize, s.maxBytes)
		}
	}

	header := *cp
	header.State = nil
	header.Metadata.Tags = append([]string(nil), cp.Metadata.Tags...)

	now := s.now()
	s.entries[cp.ID] = &entry{
		header:     header,
		data:       data,
		size:       size,
		expiresAt:  now.Add(s.defaultTTL),
		accessedAt: now,
	}
	s.currentSize += size
	return nil
}

// Load retrieves a checkpoint and marks it recently used.
func (s *Saver) Load(_ context.Context, id string) (*checkpoint.Checkpoint, error) {
	if id == "" {
		return nil, checkpoint.ErrInvalidCheckpointID
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expiredLocked(e) {
		s.removeLocked(id, e)
		ok = false
	}
	if !ok {
		s.mu.Unlock()
		return nil, checkpoint.ErrCheckpointNotFound
	}
	e.accessedAt = s.now()
	data := e.data
	s.mu.Unlock()

	return s.decode(data)
}

// List returns the checkpoints matching filter, newest first.
func (s *Saver) List(_ context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.Lock()
	matched := make([]*entry, 0, len(s.entries))
	for id, e := range s.entries {
		if s.expiredLocked(e) {
			s.removeLocked(id, e)
			continue
		}
		if filter.Matches(&e.header) {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].header, matched[j].header
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})

	if filter.Offset >= len(matched) {
		return []*checkpoint.Checkpoint{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*checkpoint.Checkpoint, 0, len(matched))
	for _, e := range matched {
		cp, err := s.decode(e.data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Delete removes a checkpoint.
func (s *Saver) Delete(_ context.Context, id string) error {
	if id == "" {
		return checkpoint.ErrInvalidCheckpointID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return checkpoint.ErrCheckpointNotFound
	}
	s.removeLocked(id, e)
	return nil
}

// Stats reports memory usage.
type Stats struct {
	Count              int64   `json:"count"`
	SizeBytes          int64   `json:"size_bytes"`
	MaxBytes           int64   `json:"max_bytes"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

func (s *Saver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Count:     int64(len(s.entries)),
		SizeBytes: s.currentSize,
		MaxBytes:  s.maxBytes,
	}
	if s.maxBytes > 0 {
		st.UtilizationPercent = float64(s.currentSize) / float64(s.maxBytes) * 100
	}
	return st
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Saver) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
		<-s.done
	})
	return nil
}

func (s *Saver) decode(data []byte) (*checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	if err := s.serializer.Deserialize(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %w", checkpoint.ErrLoadFailed, err)
	}
	return &cp, nil
}

func (s *Saver) sweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Saver) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if s.expiredLocked(e) {
			s.removeLocked(id, e)
		}
	}
}

func (s *Saver) expiredLocked(e *entry) bool {
	return s.now().After(e.expiresAt)
}

func (s *Saver) removeLocked(id string, e *entry) {
	delete(s.entries, id)
	s.currentSize -= e.size
}

// evictLocked drops least recently used entries until target bytes are
// freed or nothing is left.
func (s *Saver) evictLocked(target int64) int64 {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].accessedAt.Before(s.entries[ids[j]].accessedAt)
	})

	var freed int64
	for _, id := range ids {
		if freed >= target {
			break
		}
		e := s.entries[id]
		freed += e.size
		s.removeLocked(id, e)
	}
	return freed
}
