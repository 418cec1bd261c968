// Package sink holds the completed plates and the user-visible run log.
// Both are append-only for the engine; the host may read, export and
// clear them concurrently.
package sink

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// MaxLogs caps the run log; the oldest entries are dropped first.
const MaxLogs = 500

// Result is one completed work item.
type Result struct {
	Plate       string    `json:"plate"`
	CompletedAt time.Time `json:"completedAt"`
	Operator    string    `json:"operator,omitempty"`
}

// Sink is safe for concurrent use.
type Sink struct {
	mu      sync.RWMutex
	results []Result
	seen    map[string]struct{}
	logs    []core.LogEntry
	seq     uint64

	subMu  sync.Mutex
	subs   map[int]chan core.LogEntry
	nextID int

	store *Store
	now   func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithStore persists every change to store.
func WithStore(store *Store) Option {
	return func(s *Sink) { s.store = store }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// New creates a sink. With a store, previously saved state is loaded.
func New(opts ...Option) *Sink {
	s := &Sink{
		seen: make(map[string]struct{}),
		subs: make(map[int]chan core.LogEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store != nil {
		s.load()
	}
	return s
}

func (s *Sink) load() {
	results, err := s.store.LoadResults()
	if err != nil {
		logger.Warn("load results: %v", err)
	}
	logs, err := s.store.LoadLogs()
	if err != nil {
		logger.Warn("load logs: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if _, dup := s.seen[r.Plate]; dup {
			continue
		}
		s.seen[r.Plate] = struct{}{}
		s.results = append(s.results, r)
	}
	if len(logs) > MaxLogs {
		logs = logs[len(logs)-MaxLogs:]
	}
	s.logs = logs
	for _, e := range logs {
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
	}
}

// AddResult records a completed plate. A plate already recorded is
// rejected and false is returned.
func (s *Sink) AddResult(plate, operator string) bool {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return false
	}

	s.mu.Lock()
	if _, dup := s.seen[plate]; dup {
		s.mu.Unlock()
		s.Warning("%s 已在结果列表中，未重复记录", plate)
		return false
	}
	s.seen[plate] = struct{}{}
	s.results = append(s.results, Result{Plate: plate, CompletedAt: s.now(), Operator: operator})
	snapshot := s.resultsLocked()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveResults(snapshot); err != nil {
			logger.Warn("save results: %v", err)
		}
	}
	return true
}

func (s *Sink) resultsLocked() []Result {
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// Results returns the recorded results in completion order.
func (s *Sink) Results() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultsLocked()
}

// Plates returns just the plate strings.
func (s *Sink) Plates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.results))
	for i, r := range s.results {
		out[i] = r.Plate
	}
	return out
}

// ClearResults empties the result list.
func (s *Sink) ClearResults() {
	s.mu.Lock()
	s.results = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveResults(nil); err != nil {
			logger.Warn("save results: %v", err)
		}
	}
}

// Log appends an entry, mirrors it to the diagnostic log and notifies
// subscribers.
func (s *Sink) Log(level core.LogLevel, format string, args ...interface{}) core.LogEntry {
	msg := fmt.Sprintf(format, args...)

	s.mu.Lock()
	s.seq++
	entry := core.LogEntry{Seq: s.seq, Timestamp: s.now(), Level: level, Message: msg}
	s.logs = append(s.logs, entry)
	if len(s.logs) > MaxLogs {
		s.logs = append(s.logs[:0:0], s.logs[len(s.logs)-MaxLogs:]...)
	}
	var snapshot []core.LogEntry
	if s.store != nil {
		snapshot = s.logsLocked()
	}
	s.mu.Unlock()

	switch level {
	case core.LevelError:
		logger.Error("%s", msg)
	case core.LevelWarning:
		logger.Warn("%s", msg)
	default:
		logger.Info("%s", msg)
	}

	if s.store != nil {
		if err := s.store.SaveLogs(snapshot); err != nil {
			logger.Warn("save logs: %v", err)
		}
	}
	s.publish(entry)
	return entry
}

// Info logs at INFO.
func (s *Sink) Info(format string, args ...interface{}) core.LogEntry {
	return s.Log(core.LevelInfo, format, args...)
}

// Warning logs at WARNING.
func (s *Sink) Warning(format string, args ...interface{}) core.LogEntry {
	return s.Log(core.LevelWarning, format, args...)
}

// Error logs at ERROR.
func (s *Sink) Error(format string, args ...interface{}) core.LogEntry {
	return s.Log(core.LevelError, format, args...)
}

// Success logs at SUCCESS.
func (s *Sink) Success(format string, args ...interface{}) core.LogEntry {
	return s.Log(core.LevelSuccess, format, args...)
}

func (s *Sink) logsLocked() []core.LogEntry {
	out := make([]core.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Logs returns the retained entries, oldest first.
func (s *Sink) Logs() []core.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logsLocked()
}

// LogsSince returns entries with Seq greater than seq.
func (s *Sink) LogsSince(seq uint64) []core.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LogEntry
	for _, e := range s.logs {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// LogText renders the log one entry per line.
func (s *Sink) LogText() string {
	logs := s.Logs()
	lines := make([]string, len(logs))
	for i, e := range logs {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// ClearLogs empties the log. Sequence numbers keep increasing.
func (s *Sink) ClearLogs() {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveLogs(nil); err != nil {
			logger.Warn("save logs: %v", err)
		}
	}
}

// Subscribe streams new log entries. Slow subscribers miss entries
// rather than block the engine. Call the returned func to stop.
func (s *Sink) Subscribe() (<-chan core.LogEntry, func()) {
	ch := make(chan core.LogEntry, 64)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Sink) publish(e core.LogEntry) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
