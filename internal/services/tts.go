package services

import (
	"context"
	"strings"
)

// ---------------------------------------------------------------------------
// Speech: narration for a whole project
// ---------------------------------------------------------------------------

// SpeechResponse is synthesised narration audio.
type SpeechResponse struct {
	AudioData  []byte
	DurationMs int // estimated from word count
	Format     string
}

// SpeechSynthesizer converts narration text to audio.
type SpeechSynthesizer interface {
	GenerateSpeech(ctx context.Context, text string) (*SpeechResponse, error)
}

// JoinNarration concatenates per-scene lines into one narration script,
// skipping blanks.
func JoinNarration(lines []string) string {
	var parts []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// estimateAudioDuration guesses narration length in milliseconds.
func estimateAudioDuration(text string, speed float64) int {
	words := len(strings.Fields(text))
	baseWPM := 140.0 // narration baseline, slightly slower than conversation

	if speed <= 0 {
		speed = 1
	}
	minutes := float64(words) / (baseWPM * speed)
	return int(minutes * 60 * 1000)
}
