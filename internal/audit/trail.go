// Package audit records conflict-resolution activity as an append-only
// JSONL trail. Regulatory tooling needs to show which strategy produced a
// given outcome long after the fact, so every detection, resolution and
// strategy suggestion is written to disk.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"normlex/internal/logging"
)

// EventType represents the type of audit event
type EventType string

const (
	EventTypeConflictDetected  EventType = "conflict_detected"
	EventTypeResolutionApplied EventType = "resolution_applied"
	EventTypeResolutionFailed  EventType = "resolution_failed"
	EventTypeStrategySuggested EventType = "strategy_suggested"
	EventTypeFrameworkStored   EventType = "framework_stored"
	EventTypeFrameworkDeleted  EventType = "framework_deleted"
	EventTypeSystemStart       EventType = "system_start"
	EventTypeSystemShutdown    EventType = "system_shutdown"
)

// Event represents a single audit trail entry
type Event struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	EventType    EventType         `json:"event_type"`
	ConflictID   string            `json:"conflict_id,omitempty"`
	FrameworkIDs []string          `json:"framework_ids,omitempty"`
	Strategy     string            `json:"strategy,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Action       string            `json:"action"`
	Details      map[string]string `json:"details,omitempty"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	TraceID      string            `json:"trace_id,omitempty"`
}

// Options configures a Trail.
type Options struct {
	BufferSize    int
	FlushInterval time.Duration
	MaxFileSize   int64
	Retention     time.Duration
}

// DefaultOptions returns the default trail configuration.
func DefaultOptions() Options {
	return Options{
		BufferSize:    100,
		FlushInterval: 30 * time.Second,
		MaxFileSize:   100 * 1024 * 1024,
		Retention:     90 * 24 * time.Hour,
	}
}

// Trail handles persistent audit logging
type Trail struct {
	baseDir     string
	currentFile *os.File
	mu          sync.Mutex
	buffer      []Event
	bufferSize  int
	flushTicker *time.Ticker
	maxFileSize int64
	retention   time.Duration
	logger      logging.Logger
	done        chan struct{}

	eventCount map[EventType]int64
	errorCount int64
	lastFlush  time.Time
}

// NewTrail creates a new audit trail writing under baseDir.
func NewTrail(baseDir string, opts Options, logger logging.Logger) (*Trail, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultOptions().FlushInterval
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultOptions().MaxFileSize
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultOptions().Retention
	}

	trail := &Trail{
		baseDir:     baseDir,
		buffer:      make([]Event, 0, opts.BufferSize),
		bufferSize:  opts.BufferSize,
		flushTicker: time.NewTicker(opts.FlushInterval),
		maxFileSize: opts.MaxFileSize,
		retention:   opts.Retention,
		logger:      logger,
		done:        make(chan struct{}),
		eventCount:  make(map[EventType]int64),
		lastFlush:   time.Now(),
	}

	if err := trail.rotateFile(); err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	go trail.flushLoop()
	go trail.cleanupLoop()

	trail.Record(context.Background(), Event{
		EventType: EventTypeSystemStart,
		Action:    "audit trail started",
		Success:   true,
	})

	return trail, nil
}

// Record appends an event to the trail. ID, timestamp and trace ID are
// filled in if missing. A nil trail discards events, which lets callers
// run with auditing disabled.
func (t *Trail) Record(ctx context.Context, event Event) {
	if t == nil {
		return
	}
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.TraceID == "" {
		event.TraceID = logging.GetTraceID(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = append(t.buffer, event)
	t.eventCount[event.EventType]++
	if !event.Success {
		t.errorCount++
	}

	if len(t.buffer) >= t.bufferSize {
		t.flush()
	}
}

// RecordResolution records a completed resolution.
func (t *Trail) RecordResolution(ctx context.Context, conflictID, strategy string, confidence float64, frameworkIDs []string) {
	t.Record(ctx, Event{
		EventType:    EventTypeResolutionApplied,
		ConflictID:   conflictID,
		FrameworkIDs: frameworkIDs,
		Strategy:     strategy,
		Confidence:   confidence,
		Action:       "conflict resolved",
		Success:      true,
	})
}

// RecordFailure records a failed resolution attempt.
func (t *Trail) RecordFailure(ctx context.Context, conflictID string, err error) {
	t.Record(ctx, Event{
		EventType:  EventTypeResolutionFailed,
		ConflictID: conflictID,
		Action:     "conflict resolution failed",
		Success:    false,
		Error:      err.Error(),
	})
}

// flush writes buffered events to disk. Caller must hold t.mu.
func (t *Trail) flush() {
	if len(t.buffer) == 0 {
		return
	}

	// Rotate if the current file has grown past the limit
	if t.currentFile != nil {
		if info, err := t.currentFile.Stat(); err == nil && info.Size() > t.maxFileSize {
			_ = t.rotateFile()
		}
	}

	encoder := json.NewEncoder(t.currentFile)
	for i := range t.buffer {
		if err := encoder.Encode(t.buffer[i]); err != nil {
			t.logger.Error("failed to write audit event", "error", err, "event_id", t.buffer[i].ID)
		}
	}

	t.buffer = t.buffer[:0]
	t.lastFlush = time.Now()
}

func (t *Trail) flushLoop() {
	for {
		select {
		case <-t.flushTicker.C:
			t.mu.Lock()
			t.flush()
			t.mu.Unlock()
		case <-t.done:
			return
		}
	}
}

// rotateFile opens a fresh timestamped log file and repoints the
// current.jsonl symlink at it. Caller must hold t.mu (or be in NewTrail).
func (t *Trail) rotateFile() error {
	if t.currentFile != nil {
		_ = t.currentFile.Close()
	}

	filename := fmt.Sprintf("audit_%s.jsonl", time.Now().Format("20060102_150405"))
	fullPath := filepath.Join(t.baseDir, filename)

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- path built from baseDir and timestamp
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	t.currentFile = file

	currentLink := filepath.Join(t.baseDir, "current.jsonl")
	_ = os.Remove(currentLink)
	_ = os.Symlink(filename, currentLink)

	return nil
}

func (t *Trail) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.done:
			return
		}
	}
}

// cleanup removes audit files older than the retention window.
func (t *Trail) cleanup() {
	cutoff := time.Now().Add(-t.retention)

	files, err := os.ReadDir(t.baseDir)
	if err != nil {
		t.logger.Error("failed to read audit directory", "error", err)
		return
	}

	for _, file := range files {
		if file.IsDir() || !isAuditFile(file.Name()) {
			continue
		}
		fullPath := filepath.Join(t.baseDir, file.Name())
		info, err := os.Stat(fullPath)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(fullPath); err != nil {
				t.logger.Error("failed to remove old audit file", "file", fullPath, "error", err)
			} else {
				t.logger.Info("removed old audit file", "file", file.Name())
			}
		}
	}
}

// Statistics returns event counts since startup.
func (t *Trail) Statistics() map[string]interface{} {
	if t == nil {
		return map[string]interface{}{"total_events": int64(0)}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	byType := make(map[EventType]int64, len(t.eventCount))
	var total int64
	for eventType, count := range t.eventCount {
		byType[eventType] = count
		total += count
	}

	return map[string]interface{}{
		"total_events":   total,
		"error_count":    t.errorCount,
		"events_by_type": byType,
		"buffer_size":    len(t.buffer),
		"last_flush":     t.lastFlush,
	}
}

// SearchCriteria defines search parameters for the audit trail
type SearchCriteria struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []EventType
	ConflictID string
	Strategy   string
	Success    *bool
	Limit      int
}

// Matches checks if an event matches the criteria
func (sc SearchCriteria) Matches(event Event) bool {
	if !sc.StartTime.IsZero() && event.Timestamp.Before(sc.StartTime) {
		return false
	}
	if !sc.EndTime.IsZero() && event.Timestamp.After(sc.EndTime) {
		return false
	}

	if len(sc.EventTypes) > 0 {
		found := false
		for _, et := range sc.EventTypes {
			if event.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if sc.ConflictID != "" && event.ConflictID != sc.ConflictID {
		return false
	}
	if sc.Strategy != "" && event.Strategy != sc.Strategy {
		return false
	}
	if sc.Success != nil && event.Success != *sc.Success {
		return false
	}

	return true
}

// Search scans the trail files for events matching the criteria.
func (t *Trail) Search(_ context.Context, criteria SearchCriteria) ([]Event, error) {
	if t == nil {
		return []Event{}, nil
	}
	// Flush so recent events are searchable
	t.mu.Lock()
	t.flush()
	t.mu.Unlock()

	files, err := os.ReadDir(t.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit directory: %w", err)
	}

	events := []Event{}
	for _, file := range files {
		if file.IsDir() || !isAuditFile(file.Name()) {
			continue
		}
		fileEvents, err := t.searchFile(file.Name(), criteria)
		if err != nil {
			t.logger.Error("failed to search audit file", "file", file.Name(), "error", err)
			continue
		}
		events = append(events, fileEvents...)
	}

	if criteria.Limit > 0 && len(events) > criteria.Limit {
		events = events[:criteria.Limit]
	}

	return events, nil
}

func (t *Trail) searchFile(filename string, criteria SearchCriteria) ([]Event, error) {
	cleanPath := filepath.Clean(filepath.Join(t.baseDir, filename))
	if !strings.HasPrefix(cleanPath, filepath.Clean(t.baseDir)) {
		return nil, fmt.Errorf("invalid filename")
	}

	file, err := os.Open(cleanPath) // #nosec G304 -- path is cleaned and validated
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	events := []Event{}
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			continue
		}
		if criteria.Matches(event) {
			events = append(events, event)
		}
	}

	return events, nil
}

// Stop gracefully stops the trail, flushing remaining events.
func (t *Trail) Stop() {
	if t == nil {
		return
	}
	t.flushTicker.Stop()
	close(t.done)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = append(t.buffer, Event{
		ID:        generateEventID(),
		Timestamp: time.Now().UTC(),
		EventType: EventTypeSystemShutdown,
		Action:    "audit trail shutdown",
		Success:   true,
	})
	t.flush()

	if t.currentFile != nil {
		_ = t.currentFile.Close()
	}
}

func generateEventID() string {
	return fmt.Sprintf("evt_%d_%d", time.Now().UnixNano(), os.Getpid())
}

func isAuditFile(filename string) bool {
	return strings.HasPrefix(filename, "audit_") && filepath.Ext(filename) == ".jsonl"
}
