package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. It backs tests and
// runs without a database configured.
type MemoryStore struct {
	mu             sync.RWMutex
	nextID         int64
	members        []Member
	transcriptions []Transcription
	meetings       []Meeting
	tasks          []Task
	logs           []LogEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// AddMember registers a team member and returns the stored record.
func (s *MemoryStore) AddMember(name, designation string) Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Member{ID: s.id(), Name: name, Designation: designation}
	s.members = append(s.members, m)
	return m
}

func (s *MemoryStore) Members(ctx context.Context) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out, nil
}

func (s *MemoryStore) MemberByName(ctx context.Context, name string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if strings.EqualFold(m.Name, name) {
			found := m
			return &found, nil
		}
	}
	return nil, fmt.Errorf("member %q: %w", name, ErrNotFound)
}

func (s *MemoryStore) SaveTranscription(ctx context.Context, t *Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.transcriptions = append(s.transcriptions, *t)
	return nil
}

func (s *MemoryStore) SaveMeeting(ctx context.Context, m *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.meetings = append(s.meetings, *m)
	return nil
}

func (s *MemoryStore) SaveTask(ctx context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.id()
	s.tasks = append(s.tasks, *task)
	return nil
}

func (s *MemoryStore) AppendLog(ctx context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Tasks returns a copy of all stored tasks.
func (s *MemoryStore) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Meetings returns a copy of all stored meetings.
func (s *MemoryStore) Meetings() []Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Meeting, len(s.meetings))
	copy(out, s.meetings)
	return out
}

// Transcriptions returns a copy of all stored transcriptions.
func (s *MemoryStore) Transcriptions() []Transcription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transcription, len(s.transcriptions))
	copy(out, s.transcriptions)
	return out
}

// Logs returns a copy of all processing log entries.
func (s *MemoryStore) Logs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}
