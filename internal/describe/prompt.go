package describe

import (
	"fmt"
	"strings"

	"github.com/skylens/videopulse/internal/models"
)

const (
	maxPromptLabels    = 8
	maxPromptEntities  = 3
	maxPromptTexts     = 5
	maxPromptFlags     = 3
	maxTranscriptChars = 500
)

// buildPrompt assembles the user prompt from whatever analysis signal is
// present. The model's role and style constraints live in the system
// instruction; this carries only the data and the task.
func buildPrompt(visual *models.VisualAnalysis, audio *models.AudioAnalysis, sourceRef string) string {
	var parts []string

	if visual != nil && visual.Error == "" {
		parts = append(parts, "**Visual Elements Detected:**")
		if names := labelNames(visual.Labels, maxPromptLabels); len(names) > 0 {
			parts = append(parts, fmt.Sprintf("- Main subjects: %s", strings.Join(names, ", ")))
		}
		if names := entityNames(visual.Entities, maxPromptEntities); len(names) > 0 {
			parts = append(parts, fmt.Sprintf("- Notable entities: %s", strings.Join(names, ", ")))
		}
		if texts := detectedTexts(visual.TextDetections, maxPromptTexts); len(texts) > 0 {
			parts = append(parts, fmt.Sprintf("- Text visible: %s", strings.Join(texts, ", ")))
		}
		if len(visual.Categories) > 0 {
			parts = append(parts, fmt.Sprintf("- Primary categories: %s", strings.Join(visual.Categories, ", ")))
		}
		if flags := flagNames(visual.ModerationFlags, maxPromptFlags); len(flags) > 0 {
			parts = append(parts, fmt.Sprintf("- Content warnings: %s", strings.Join(flags, ", ")))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "**Audio Content:**")
	if audio.HasTranscript() {
		parts = append(parts, fmt.Sprintf("- Transcript: %q", truncateTranscript(audio.Transcript)))
		if n := len(audio.SpeakerSegments); n > 1 {
			parts = append(parts, fmt.Sprintf("- Multiple speakers detected (%d segments)", n))
		}
		if lang := audio.Language; lang != "" && !strings.HasPrefix(strings.ToLower(lang), "en") {
			parts = append(parts, fmt.Sprintf("- Language: %s", lang))
		}
	} else {
		parts = append(parts, "- No clear audio/speech detected in this video")
	}
	parts = append(parts, "")

	if models.IsStreamingPlatformURL(sourceRef) {
		parts = append(parts, "**Context:** This is a streaming-platform video.")
	} else {
		parts = append(parts, "**Context:** This is a directly uploaded video.")
	}

	parts = append(parts,
		"",
		"**Task:** Based on the analysis above, write an engaging 2-3 sentence description that would make someone want to watch this video. Focus on the most interesting elements and create curiosity.",
	)

	return strings.Join(parts, "\n")
}

func labelNames(labels []models.Label, limit int) []string {
	names := make([]string, 0, limit)
	for _, l := range labels {
		if len(names) == limit {
			break
		}
		names = append(names, l.Name)
	}
	return names
}

func entityNames(entities []models.Entity, limit int) []string {
	names := make([]string, 0, limit)
	for _, e := range entities {
		if len(names) == limit {
			break
		}
		names = append(names, e.Name)
	}
	return names
}

func detectedTexts(detections []models.TextDetection, limit int) []string {
	texts := make([]string, 0, limit)
	for _, d := range detections {
		if len(texts) == limit {
			break
		}
		texts = append(texts, d.Text)
	}
	return texts
}

func flagNames(flags []models.ModerationFlag, limit int) []string {
	names := make([]string, 0, limit)
	for _, f := range flags {
		if len(names) == limit {
			break
		}
		names = append(names, f.Name)
	}
	return names
}

func truncateTranscript(transcript string) string {
	runes := []rune(transcript)
	if len(runes) <= maxTranscriptChars {
		return transcript
	}
	return string(runes[:maxTranscriptChars]) + "..."
}
