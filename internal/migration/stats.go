package migration

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogStatus classifies an audit log entry.
type LogStatus string

const (
	StatusSuccess    LogStatus = "success"
	StatusError      LogStatus = "error"
	StatusSkipped    LogStatus = "skipped"
	StatusWarning    LogStatus = "warning"
	StatusValidation LogStatus = "validation"
)

// LogEntry is one append-only structured audit event.
type LogEntry struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subjectId"`
	Status    LogStatus      `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AuditLog is a capped append-only log of structured events. The cap bounds
// what is kept for display; aggregate counters in Stats are never capped.
type AuditLog struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
	appended uint64
}

// NewAuditLog creates a log that retains the most recent capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	return &AuditLog{
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append records an event, dropping the oldest entry when at capacity.
func (al *AuditLog) Append(subjectID string, status LogStatus, message string, metadata map[string]any) {
	al.mu.Lock()
	defer al.mu.Unlock()

	entry := LogEntry{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
	if len(al.entries) >= al.capacity {
		copy(al.entries, al.entries[1:])
		al.entries[len(al.entries)-1] = entry
	} else {
		al.entries = append(al.entries, entry)
	}
	al.appended++
}

// Recent returns up to n entries, newest first.
func (al *AuditLog) Recent(n int) []LogEntry {
	al.mu.Lock()
	defer al.mu.Unlock()

	if n <= 0 || n > len(al.entries) {
		n = len(al.entries)
	}
	out := make([]LogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = al.entries[len(al.entries)-1-i]
	}
	return out
}

// TotalAppended returns the lifetime number of appended entries, including
// those already displaced from the display window.
func (al *AuditLog) TotalAppended() uint64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.appended
}

// Reset drops all retained entries and the lifetime counter.
func (al *AuditLog) Reset() {
	al.mu.Lock()
	defer al.mu.Unlock()
	al.entries = al.entries[:0]
	al.appended = 0
}

// StatsSnapshot is the immutable view of a run's counters handed to callers.
type StatsSnapshot struct {
	TotalItems            uint64  `json:"totalItems"`
	ProcessedItems        uint64  `json:"processedItems"`
	UpdatedItems          uint64  `json:"updatedItems"`
	SkippedItems          uint64  `json:"skippedItems"`
	ErrorItems            uint64  `json:"errorItems"`
	ValidUsersFound       uint64  `json:"validUsersFound"`
	UsersWithOwner        uint64  `json:"usersWithOwner"`
	UsersWithoutOwner     uint64  `json:"usersWithoutOwner"`
	TotalCandidatesChecked uint64 `json:"totalCandidatesChecked"`
	NoValidCandidateFound uint64  `json:"noValidCandidateFound"`
	ValidationErrors      uint64  `json:"validationErrors"`
	DataIntegrityIssues   uint64  `json:"dataIntegrityIssues"`
	CurrentBatch          uint64  `json:"currentBatch"`
	State                 string  `json:"state"`
	ProcessingRate        float64 `json:"processingRate"`
}

// Stats holds the running counters of one engine run. Counters only increase
// while a run is active; Reset zeroes everything for a new run.
type Stats struct {
	mu sync.Mutex

	totalItems             uint64
	processedItems         uint64
	updatedItems           uint64
	skippedItems           uint64
	errorItems             uint64
	validUsersFound        uint64
	usersWithOwner         uint64
	usersWithoutOwner      uint64
	totalCandidatesChecked uint64
	noValidCandidateFound  uint64
	validationErrors       uint64
	dataIntegrityIssues    uint64
	currentBatch           uint64

	runStarted time.Time
	running    bool
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) add(field *uint64, delta uint64) {
	s.mu.Lock()
	*field += delta
	s.mu.Unlock()
}

func (s *Stats) AddTotal(n int)              { s.add(&s.totalItems, uint64(n)) }
func (s *Stats) IncProcessed()               { s.add(&s.processedItems, 1) }
func (s *Stats) AddUpdated(n int)            { s.add(&s.updatedItems, uint64(n)) }
func (s *Stats) IncSkipped()                 { s.add(&s.skippedItems, 1) }
func (s *Stats) IncErrors()                  { s.add(&s.errorItems, 1) }
func (s *Stats) IncValidUsersFound()         { s.add(&s.validUsersFound, 1) }
func (s *Stats) IncUsersWithOwner()          { s.add(&s.usersWithOwner, 1) }
func (s *Stats) IncUsersWithoutOwner()       { s.add(&s.usersWithoutOwner, 1) }
func (s *Stats) AddCandidatesChecked(n int)  { s.add(&s.totalCandidatesChecked, uint64(n)) }
func (s *Stats) IncNoValidCandidateFound()   { s.add(&s.noValidCandidateFound, 1) }
func (s *Stats) IncValidationErrors()        { s.add(&s.validationErrors, 1) }
func (s *Stats) IncDataIntegrityIssues()     { s.add(&s.dataIntegrityIssues, 1) }
func (s *Stats) IncBatch()                   { s.add(&s.currentBatch, 1) }

// CurrentBatch returns the number of the batch being processed.
func (s *Stats) CurrentBatch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBatch
}

// MarkRunStarted captures the wall-clock start used for the processing rate.
func (s *Stats) MarkRunStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		s.runStarted = time.Now()
	}
}

// MarkRunStopped freezes the processing-rate clock.
func (s *Stats) MarkRunStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Reset zeroes all counters. Only an explicit operator reset calls this.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalItems = 0
	s.processedItems = 0
	s.updatedItems = 0
	s.skippedItems = 0
	s.errorItems = 0
	s.validUsersFound = 0
	s.usersWithOwner = 0
	s.usersWithoutOwner = 0
	s.totalCandidatesChecked = 0
	s.noValidCandidateFound = 0
	s.validationErrors = 0
	s.dataIntegrityIssues = 0
	s.currentBatch = 0
	s.running = false
	s.runStarted = time.Time{}
}

// Snapshot returns a copy of the counters. The processing rate is only
// computed while a run is actively looping.
func (s *Stats) Snapshot(state string) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalItems:             s.totalItems,
		ProcessedItems:         s.processedItems,
		UpdatedItems:           s.updatedItems,
		SkippedItems:           s.skippedItems,
		ErrorItems:             s.errorItems,
		ValidUsersFound:        s.validUsersFound,
		UsersWithOwner:         s.usersWithOwner,
		UsersWithoutOwner:      s.usersWithoutOwner,
		TotalCandidatesChecked: s.totalCandidatesChecked,
		NoValidCandidateFound:  s.noValidCandidateFound,
		ValidationErrors:       s.validationErrors,
		DataIntegrityIssues:    s.dataIntegrityIssues,
		CurrentBatch:           s.currentBatch,
		State:                  state,
	}
	if s.running {
		if elapsed := time.Since(s.runStarted).Seconds(); elapsed > 0 {
			snap.ProcessingRate = float64(s.processedItems) / elapsed
		}
	}
	return snap
}
