package describe

import "github.com/skylens/videopulse/internal/models"

const (
	topLabelsForScore       = 10
	descriptionTargetLength = 200
)

// ConfidenceScore is the unweighted mean of the sub-scores that are
// present; absent or degraded signals contribute nothing rather than
// dragging the mean down. No signal at all scores 0.0.
func ConfidenceScore(visual *models.VisualAnalysis, audio *models.AudioAnalysis, description string) float64 {
	var scores []float64

	if visual != nil && visual.Error == "" && len(visual.Labels) > 0 {
		top := visual.Labels
		if len(top) > topLabelsForScore {
			top = top[:topLabelsForScore]
		}
		var sum float64
		for _, label := range top {
			sum += label.Confidence
		}
		scores = append(scores, sum/float64(len(top))/100.0)
	}

	if audio != nil && audio.Error == "" && audio.Confidence > 0 {
		scores = append(scores, audio.Confidence)
	}

	if description != "" {
		quality := float64(len(description)) / descriptionTargetLength
		if quality > 1 {
			quality = 1
		}
		scores = append(scores, quality)
	}

	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return clamp01(sum / float64(len(scores)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
