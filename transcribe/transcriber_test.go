package transcribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, IsSupportedFile("/recordings/standup.mp4"))
	assert.True(t, IsSupportedFile("meeting.M4A"))
	assert.True(t, IsSupportedFile("call.webm"))
	assert.False(t, IsSupportedFile("notes.txt"))
	assert.False(t, IsSupportedFile("archive.zip"))
	assert.False(t, IsSupportedFile("noextension"))
}

func TestNotConfigured(t *testing.T) {
	tr := New("")
	assert.False(t, tr.Ready())

	_, err := tr.TranscribeFile(context.Background(), "meeting.mp4")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilTranscriber *Transcriber
	assert.False(t, nilTranscriber.Ready())
}

func TestUnsupportedFileType(t *testing.T) {
	tr := New("test-key")
	assert.True(t, tr.Ready())

	_, err := tr.TranscribeFile(context.Background(), "notes.txt")
	assert.ErrorContains(t, err, "unsupported file type")
}
