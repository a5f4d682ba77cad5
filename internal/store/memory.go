package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Store used in tests and when no REDIS_URL is
// configured. State does not survive a process restart.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
	wakes map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
		wakes: make(map[string]int64),
	}
}

func (m *Memory) SaveJSON(_ context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = payload
	return nil
}

func (m *Memory) LoadJSON(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	payload, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) SaveWake(_ context.Context, key string, atMillis int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wakes[key] = atMillis
	return nil
}

func (m *Memory) LoadWake(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.wakes[key]
	return at, ok, nil
}

func (m *Memory) ClearWake(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wakes, key)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.blobs, key)
		delete(m.wakes, key)
	}
	return nil
}
