package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMembers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	added := s.AddMember("Kailas S S", "Engineer")
	assert.NotZero(t, added.ID)

	m, err := s.MemberByName(ctx, "kailas s s")
	require.NoError(t, err)
	assert.Equal(t, added.ID, m.ID)

	_, err = s.MemberByName(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	members, err := s.Members(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestMemoryStoreSaveAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tr := &Transcription{Summary: "We met."}
	require.NoError(t, s.SaveTranscription(ctx, tr))
	assert.NotZero(t, tr.ID)

	meeting := &Meeting{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), TranscriptionID: tr.ID}
	require.NoError(t, s.SaveMeeting(ctx, meeting))
	assert.NotZero(t, meeting.ID)
	assert.NotEqual(t, tr.ID, meeting.ID)

	member := s.AddMember("Alice Johnson", "")
	task := &Task{MemberID: member.ID, Description: "Finish the report", Deadline: time.Now()}
	require.NoError(t, s.SaveTask(ctx, task))
	assert.NotZero(t, task.ID)

	assert.Len(t, s.Tasks(), 1)
	assert.Len(t, s.Meetings(), 1)
	assert.Len(t, s.Transcriptions(), 1)
}

func TestMemoryStoreLogs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entry := &LogEntry{Step: "summarize", Status: LogCompleted, Message: "ok"}
	require.NoError(t, s.AppendLog(ctx, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	logs := s.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "summarize", logs[0].Step)
}
