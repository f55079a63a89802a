package storage

import (
	"sync"
	"time"
)

type MemoryStorage struct {
	threads  map[string]*Thread
	records  map[string]*GenerationRecord
	maxTurns int
	mutex    sync.RWMutex
}

// NewMemoryStorage creates an in-memory session store. maxTurns bounds the
// history kept per thread; 0 keeps everything.
func NewMemoryStorage(maxTurns int) *MemoryStorage {
	return &MemoryStorage{
		threads:  make(map[string]*Thread),
		records:  make(map[string]*GenerationRecord),
		maxTurns: maxTurns,
	}
}

func (m *MemoryStorage) GetThread(key string) (*Thread, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return cloneThread(m.threads[key]), nil
}

func (m *MemoryStorage) PutThread(key string, thread *Thread) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := cloneThread(thread)
	stored.Key = key
	stored.UpdatedAt = time.Now()
	m.threads[key] = stored
	return nil
}

func (m *MemoryStorage) AppendTurns(key string, turns ...Turn) (*Thread, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for i := range turns {
		if turns[i].Timestamp.IsZero() {
			turns[i].Timestamp = now
		}
	}

	thread, ok := m.threads[key]
	if !ok {
		thread = &Thread{Key: key}
		m.threads[key] = thread
	}
	thread.Turns = append(thread.Turns, turns...)

	// Trim oldest turns when a bound is configured
	if m.maxTurns > 0 && len(thread.Turns) > m.maxTurns {
		thread.Turns = thread.Turns[len(thread.Turns)-m.maxTurns:]
	}
	thread.UpdatedAt = now

	return cloneThread(thread), nil
}

func (m *MemoryStorage) GetRecord(key string) (*GenerationRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	record, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	c := *record
	c.Images = append([]ImageBlob(nil), record.Images...)
	return &c, nil
}

func (m *MemoryStorage) PutRecord(key string, record *GenerationRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c := *record
	c.Key = key
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.Images = append([]ImageBlob(nil), record.Images...)
	m.records[key] = &c
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// cloneThread copies a thread so callers can replay or append without racing
// the stored slice.
func cloneThread(t *Thread) *Thread {
	if t == nil {
		return nil
	}
	c := *t
	c.Turns = append([]Turn(nil), t.Turns...)
	return &c
}
