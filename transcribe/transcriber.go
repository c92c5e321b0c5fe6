// Package transcribe converts meeting recordings to text using the
// AssemblyAI API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("transcriber not configured")

// supportedExtensions are the recording file types the watcher picks
// up and the transcriber accepts.
var supportedExtensions = map[string]bool{
	".mp4":  true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mpeg": true,
	".webm": true,
	".mkv":  true,
}

// IsSupportedFile reports whether the path has a recognized recording
// extension.
func IsSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns the accepted extensions, for error
// messages and CLI help.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	return exts
}

// Transcriber uploads recordings to AssemblyAI and waits for the
// finished transcript.
type Transcriber struct {
	client *aai.Client
}

func New(apiKey string) *Transcriber {
	if apiKey == "" {
		return &Transcriber{}
	}
	return &Transcriber{client: aai.NewClient(apiKey)}
}

// Ready reports whether the transcriber has an API key and can accept
// files.
func (t *Transcriber) Ready() bool {
	return t != nil && t.client != nil
}

// TranscribeFile transcribes a local recording and returns the full
// transcript text. When speaker labels are available the transcript is
// formatted as one paragraph per utterance.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	if !t.Ready() {
		return "", ErrNotConfigured
	}
	if !IsSupportedFile(path) {
		return "", fmt.Errorf("unsupported file type %q, supported: %s",
			filepath.Ext(path), strings.Join(SupportedExtensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	slog.Info("starting transcription", "file", path)

	transcript, err := t.client.Transcripts.TranscribeFromReader(ctx, f, &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		msg := "unknown error"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return "", fmt.Errorf("transcribe %s: %s", filepath.Base(path), msg)
	}

	text := formatTranscript(transcript)
	if text == "" {
		return "", fmt.Errorf("transcribe %s: empty transcript", filepath.Base(path))
	}

	slog.Info("transcription complete", "file", path, "chars", len(text))
	return text, nil
}

func formatTranscript(t aai.Transcript) string {
	if len(t.Utterances) > 0 {
		parts := make([]string, 0, len(t.Utterances))
		for _, u := range t.Utterances {
			if u.Text == nil || strings.TrimSpace(*u.Text) == "" {
				continue
			}
			speaker := ""
			if u.Speaker != nil {
				speaker = "Speaker " + *u.Speaker + ": "
			}
			parts = append(parts, speaker+strings.TrimSpace(*u.Text))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	if t.Text != nil {
		return strings.TrimSpace(*t.Text)
	}
	return ""
}
