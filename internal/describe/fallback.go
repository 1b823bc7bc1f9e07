package describe

import (
	"fmt"
	"strings"

	"github.com/skylens/videopulse/internal/models"
)

// genericDescription is returned when neither record carries usable signal.
const genericDescription = "This video contains visual content that may be of interest to viewers."

// minUsableTranscript is the transcript length below which the audio signal
// is too thin to characterize.
const minUsableTranscript = 50

var (
	educationalKeywords  = []string{"how to", "tutorial", "learn"}
	entertainingKeywords = []string{"funny", "laugh", "joke"}
)

// fallbackDescription assembles a description without the generator. It is
// total: any combination of present, degraded, or empty records yields a
// non-empty description with zeroed, fallback-tagged metrics.
func fallbackDescription(visual *models.VisualAnalysis, audio *models.AudioAnalysis) (string, models.GenerationMetrics) {
	metrics := models.GenerationMetrics{Model: "fallback-template", Fallback: true}

	var sentences []string
	if visualSentence := fallbackVisualSentence(visual); visualSentence != "" {
		sentences = append(sentences, visualSentence)
	}

	transcript := ""
	if audio.HasTranscript() {
		transcript = audio.Transcript
	}
	if len(transcript) > minUsableTranscript {
		sentences = append(sentences, fallbackAudioSentence(transcript))
	} else if len(sentences) > 0 {
		sentences = append(sentences, "This appears to be a visual-focused video")
	}

	if len(sentences) == 0 {
		return genericDescription, metrics
	}
	return strings.Join(sentences, ". ") + ".", metrics
}

func fallbackVisualSentence(visual *models.VisualAnalysis) string {
	if visual == nil || visual.Error != "" || len(visual.Labels) == 0 {
		return ""
	}
	sentence := fmt.Sprintf("This video features %s", strings.ToLower(visual.Labels[0].Name))
	if len(visual.Categories) > 1 {
		sentence += fmt.Sprintf(" with elements of %s", strings.ToLower(visual.Categories[1]))
	}
	for _, category := range visual.Categories {
		if strings.Contains(strings.ToLower(category), "people") {
			sentence += " and people"
			break
		}
	}
	return sentence
}

func fallbackAudioSentence(transcript string) string {
	sentence := "The video includes spoken content"
	lower := strings.ToLower(transcript)
	switch {
	case containsAny(lower, educationalKeywords):
		sentence += " with educational content"
	case containsAny(lower, entertainingKeywords):
		sentence += " with entertaining dialogue"
	}
	return sentence
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
