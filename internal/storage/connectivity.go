package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"boardkiosk/internal/models"
)

const (
	defaultLogCapacity = 4096
	// samples are written in batches, transitions immediately
	defaultSampleBatch = 12
)

type connectivityFile struct {
	Samples     []models.ConnectivityStatus `json:"samples"`
	Transitions []models.Transition         `json:"transitions"`
}

// ConnectivityLog persists probe samples and state transitions to disk for diagnostics.
// The supervisor never reads its state back from here. Samples recorded since the last
// write are lost on a crash unless Flush was called.
type ConnectivityLog struct {
	mu       sync.RWMutex
	path     string
	capacity int
	batch    int
	pending  int
	data     connectivityFile
}

// NewConnectivityLog initialises the log and loads existing entries if present.
func NewConnectivityLog(path string, capacity int) (*ConnectivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	store := &ConnectivityLog{path: path, capacity: capacity, batch: defaultSampleBatch}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// RecordSample appends a probe sample. The log is written once a batch of samples has
// accumulated.
func (s *ConnectivityLog) RecordSample(status models.ConnectivityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Samples = append(s.data.Samples, status)
	if len(s.data.Samples) > s.capacity {
		s.data.Samples = s.data.Samples[len(s.data.Samples)-s.capacity:]
	}
	s.pending++
	if s.pending < s.batch {
		return nil
	}
	return s.persistLocked()
}

// RecordTransition appends a state change and persists the log.
func (s *ConnectivityLog) RecordTransition(event models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Transitions = append(s.data.Transitions, event)
	if len(s.data.Transitions) > s.capacity {
		s.data.Transitions = s.data.Transitions[len(s.data.Transitions)-s.capacity:]
	}
	return s.persistLocked()
}

// Flush writes samples that are still waiting for their batch.
func (s *ConnectivityLog) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == 0 {
		return nil
	}
	return s.persistLocked()
}

// Samples returns a copy of the stored samples, optionally filtered by board.
func (s *ConnectivityLog) Samples(board string) []models.ConnectivityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ConnectivityStatus, 0, len(s.data.Samples))
	for _, sample := range s.data.Samples {
		if board == "" || sample.Board == board {
			out = append(out, sample)
		}
	}
	return out
}

// Transitions returns a copy of the stored transitions, optionally filtered by board.
func (s *ConnectivityLog) Transitions(board string) []models.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Transition, 0, len(s.data.Transitions))
	for _, event := range s.data.Transitions {
		if board == "" || event.Board == board {
			out = append(out, event)
		}
	}
	return out
}

func (s *ConnectivityLog) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read connectivity log: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var file connectivityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse connectivity log: %w", err)
	}
	s.data = file
	return nil
}

func (s *ConnectivityLog) persistLocked() error {
	bytes, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connectivity log: %w", err)
	}
	if err := writeAtomic(s.path, bytes); err != nil {
		return fmt.Errorf("persist connectivity log: %w", err)
	}
	s.pending = 0
	return nil
}
