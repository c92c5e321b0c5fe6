package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists records in Postgres through a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// NewPGStore connects to the database and verifies the connection.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS members (
			member_id BIGSERIAL PRIMARY KEY,
			member_name VARCHAR(120) NOT NULL,
			designation VARCHAR(100) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS transcription (
			transcription_id BIGSERIAL PRIMARY KEY,
			transcription_summary TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meetings (
			meeting_id BIGSERIAL PRIMARY KEY,
			meeting_date DATE NOT NULL,
			transcription_id BIGINT NOT NULL REFERENCES transcription(transcription_id),
			page_id VARCHAR(50),
			page_url VARCHAR(500)
		)`,
		`CREATE INDEX IF NOT EXISTS ix_meetings_date ON meetings (meeting_date)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id BIGSERIAL PRIMARY KEY,
			member_id BIGINT NOT NULL REFERENCES members(member_id),
			description TEXT NOT NULL,
			deadline DATE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_tasks_member ON tasks (member_id)`,
		`CREATE INDEX IF NOT EXISTS ix_tasks_deadline ON tasks (deadline)`,
		`CREATE TABLE IF NOT EXISTS processing_logs (
			id BIGSERIAL PRIMARY KEY,
			meeting_id BIGINT,
			step VARCHAR(100) NOT NULL,
			status VARCHAR(50) NOT NULL,
			message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ix_processing_logs_meeting_step ON processing_logs (meeting_id, step)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) Members(ctx context.Context) ([]Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT member_id, member_name, designation FROM members ORDER BY member_id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Designation); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PGStore) MemberByName(ctx context.Context, name string) (*Member, error) {
	var m Member
	err := s.pool.QueryRow(ctx,
		`SELECT member_id, member_name, designation FROM members WHERE lower(member_name) = lower($1)`,
		name).Scan(&m.ID, &m.Name, &m.Designation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("member %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member %q: %w", name, err)
	}
	return &m, nil
}

// AddMember inserts a member if no member with that name exists and
// returns the stored record either way.
func (s *PGStore) AddMember(ctx context.Context, name, designation string) (*Member, error) {
	existing, err := s.MemberByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	m := Member{Name: name, Designation: designation}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO members (member_name, designation) VALUES ($1, $2) RETURNING member_id`,
		name, designation).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("add member %q: %w", name, err)
	}
	return &m, nil
}

func (s *PGStore) SaveTranscription(ctx context.Context, t *Transcription) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transcription (transcription_summary) VALUES ($1) RETURNING transcription_id`,
		t.Summary).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}
	return nil
}

func (s *PGStore) SaveMeeting(ctx context.Context, m *Meeting) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO meetings (meeting_date, transcription_id, page_id, page_url)
		 VALUES ($1, $2, $3, $4) RETURNING meeting_id`,
		m.Date, m.TranscriptionID, nullable(m.PageID), nullable(m.PageURL)).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("save meeting: %w", err)
	}
	return nil
}

func (s *PGStore) SaveTask(ctx context.Context, task *Task) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (member_id, description, deadline) VALUES ($1, $2, $3) RETURNING task_id`,
		task.MemberID, task.Description, task.Deadline).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *PGStore) AppendLog(ctx context.Context, entry *LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	var meetingID *int64
	if entry.MeetingID != 0 {
		meetingID = &entry.MeetingID
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO processing_logs (meeting_id, step, status, message, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		meetingID, entry.Step, entry.Status, nullable(entry.Message), entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
