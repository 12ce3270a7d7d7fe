package service

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateFileName is the resume side-file kept in the output directory.
const StateFileName = ".download_state.json"

const dayKey = "2006-01-02"

// saveEvery batches state writes: persist after this many completions.
const saveEvery = 5

type symbolState struct {
	Completed []string  `json:"completed"`
	Total     []string  `json:"total"`
	Updated   time.Time `json:"updated"`
}

// JobState tracks per-symbol completed days so an interrupted run can resume
// without re-downloading. Mutations happen from worker goroutines, hence the
// mutex; the file itself is only ever written under it.
type JobState struct {
	mu      sync.Mutex
	path    string
	symbols map[string]*symbolState
	pending int // completions since last save
}

// LoadJobState reads the resume file under dir. A missing file means a fresh
// start; a corrupt one is discarded with a log line rather than failing the
// run.
func LoadJobState(dir string) (*JobState, error) {
	s := &JobState{
		path:    filepath.Join(dir, StateFileName),
		symbols: make(map[string]*symbolState),
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume state: %w", err)
	}
	if err := json.Unmarshal(data, &s.symbols); err != nil {
		log.Printf("[state] %s is corrupt, starting fresh: %v", s.path, err)
		s.symbols = make(map[string]*symbolState)
	}
	return s, nil
}

// Completed returns the set of already-completed day keys for symbol.
func (s *JobState) Completed(symbol string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool)
	if st, ok := s.symbols[symbol]; ok {
		for _, d := range st.Completed {
			set[d] = true
		}
	}
	return set
}

// Begin records the symbol's full day list, keeping any completed days
// carried over from a previous run.
func (s *JobState) Begin(symbol string, days []time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{}
		s.symbols[symbol] = st
	}
	st.Total = st.Total[:0]
	for _, d := range days {
		st.Total = append(st.Total, d.UTC().Format(dayKey))
	}
	st.Updated = time.Now().UTC()
}

// MarkCompleted records one finished day and persists every saveEvery marks.
func (s *JobState) MarkCompleted(symbol string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{}
		s.symbols[symbol] = st
	}
	st.Completed = append(st.Completed, day.UTC().Format(dayKey))
	st.Updated = time.Now().UTC()
	s.pending++
	if s.pending >= saveEvery {
		s.saveLocked()
		s.pending = 0
	}
}

// Save flushes the state to disk unconditionally.
func (s *JobState) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
	s.pending = 0
}

// Clear drops the symbol's entry after a successful run. When no symbols
// remain the file is removed entirely.
func (s *JobState) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.symbols, symbol)
	if len(s.symbols) == 0 {
		os.Remove(s.path)
		return
	}
	s.saveLocked()
}

func (s *JobState) saveLocked() {
	data, err := json.MarshalIndent(s.symbols, "", "  ")
	if err != nil {
		log.Printf("[state] marshal: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("[state] write %s: %v", s.path, err)
	}
}
