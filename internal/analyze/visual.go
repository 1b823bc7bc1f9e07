package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

const (
	maxLabels         = 20
	topLabelsForStats = 10
	maxCategories     = 5
	minEntityScore    = 80
	minModerationHit  = 50
	minTextRunes      = 3
)

// VisualStarter adapts the generated client to StartFunc, requesting the
// visual feature set.
func VisualStarter(client *videointelligence.Client) StartFunc {
	return func(ctx context.Context, gcsURI string) (AnnotateOperation, error) {
		op, err := client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
			InputUri: gcsURI,
			Features: []videointelligencepb.Feature{
				videointelligencepb.Feature_LABEL_DETECTION,
				videointelligencepb.Feature_TEXT_DETECTION,
				videointelligencepb.Feature_EXPLICIT_CONTENT_DETECTION,
				videointelligencepb.Feature_LOGO_RECOGNITION,
			},
		})
		if err != nil {
			return nil, err
		}
		return op, nil
	}
}

// VisualAnalyzer runs visual annotation for one video and normalizes the
// result.
type VisualAnalyzer struct {
	start    StartFunc
	interval time.Duration
	timeout  time.Duration
}

// NewVisualAnalyzer builds an analyzer with the poll bounds from cfg.
func NewVisualAnalyzer(start StartFunc, cfg config.AnalysisConfig) *VisualAnalyzer {
	return &VisualAnalyzer{
		start:    start,
		interval: cfg.VisualPollInterval,
		timeout:  cfg.VisualPollTimeout,
	}
}

// Analyze starts annotation and polls it to a terminal state. The returned
// record is never nil and never accompanied by an error: failure and
// timeout are reported through the record's Error field.
func (a *VisualAnalyzer) Analyze(ctx context.Context, gcsURI string) *models.VisualAnalysis {
	logCtx := slog.With("analyzer", "visual", "gcsUri", gcsURI)
	logCtx.Info("Starting visual analysis.")

	op, err := a.start(ctx, gcsURI)
	if err != nil {
		logCtx.Error("Failed to start visual annotation.", "error", err)
		return visualError(fmt.Sprintf("visual analysis failed to start: %v", err))
	}

	deadline := time.Now().Add(a.timeout)
	var resp *videointelligencepb.AnnotateVideoResponse
	for {
		r, err := op.Poll(ctx)
		if err != nil {
			logCtx.Error("Visual annotation failed.", "error", err)
			return visualError(fmt.Sprintf("visual analysis failed: %v", err))
		}
		if op.Done() {
			resp = r
			break
		}
		if time.Now().After(deadline) {
			logCtx.Warn("Visual annotation timed out.", "timeout", a.timeout.String())
			return visualError(fmt.Sprintf("visual analysis timed out after %s", a.timeout))
		}
		select {
		case <-ctx.Done():
			logCtx.Warn("Context cancelled while polling visual annotation.", "error", ctx.Err())
			return visualError(fmt.Sprintf("visual analysis cancelled: %v", ctx.Err()))
		case <-time.After(a.interval):
		}
	}

	record := normalizeVisual(resp)
	if record.Error != "" {
		logCtx.Warn("Visual analysis degraded.", "error", record.Error)
	} else {
		logCtx.Info("Visual analysis complete.",
			"labels", len(record.Labels),
			"entities", len(record.Entities),
			"textDetections", len(record.TextDetections),
			"moderationFlags", len(record.ModerationFlags),
		)
	}
	return record
}

func visualError(msg string) *models.VisualAnalysis {
	return &models.VisualAnalysis{Error: msg}
}

// normalizeVisual reduces a raw annotation response to the record shape:
// labels sorted by confidence and capped, entities and moderation flags
// filtered by score, text deduplicated.
func normalizeVisual(resp *videointelligencepb.AnnotateVideoResponse) *models.VisualAnalysis {
	results := resp.GetAnnotationResults()
	if len(results) == 0 {
		return visualError("visual analysis returned no results")
	}
	r := results[0]
	if e := r.GetError(); e.GetMessage() != "" {
		return visualError(fmt.Sprintf("visual analysis failed: %s", e.GetMessage()))
	}

	labels := collectLabels(r)
	record := &models.VisualAnalysis{
		Labels:          labels,
		Entities:        collectEntities(r),
		TextDetections:  collectTextDetections(r),
		ModerationFlags: collectModerationFlags(r),
		Categories:      deriveCategories(labels),
	}
	return record
}

// collectLabels merges segment- and shot-level labels by name, keeping the
// highest confidence seen and counting occurrences across both.
func collectLabels(r *videointelligencepb.VideoAnnotationResults) []models.Label {
	type agg struct {
		name        string
		confidence  float64
		occurrences int
	}
	merged := map[string]*agg{}

	addAnnotations := func(anns []*videointelligencepb.LabelAnnotation) {
		for _, ann := range anns {
			name := strings.TrimSpace(ann.GetEntity().GetDescription())
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			entry, ok := merged[key]
			if !ok {
				entry = &agg{name: name}
				merged[key] = entry
			}
			for _, seg := range ann.GetSegments() {
				if c := float64(seg.GetConfidence()) * 100; c > entry.confidence {
					entry.confidence = c
				}
			}
			entry.occurrences += len(ann.GetSegments()) + len(ann.GetFrames())
		}
	}
	addAnnotations(r.GetSegmentLabelAnnotations())
	addAnnotations(r.GetShotLabelAnnotations())

	labels := make([]models.Label, 0, len(merged))
	for _, entry := range merged {
		labels = append(labels, models.Label{
			Name:        entry.name,
			Confidence:  entry.confidence,
			Occurrences: entry.occurrences,
		})
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Confidence != labels[j].Confidence {
			return labels[i].Confidence > labels[j].Confidence
		}
		return labels[i].Name < labels[j].Name
	})
	if len(labels) > maxLabels {
		labels = labels[:maxLabels]
	}
	return labels
}

// collectEntities keeps recognized logo entities above the score floor.
func collectEntities(r *videointelligencepb.VideoAnnotationResults) []models.Entity {
	var entities []models.Entity
	for _, logo := range r.GetLogoRecognitionAnnotations() {
		name := strings.TrimSpace(logo.GetEntity().GetDescription())
		if name == "" {
			continue
		}
		var confidence float64
		for _, track := range logo.GetTracks() {
			if c := float64(track.GetConfidence()) * 100; c > confidence {
				confidence = c
			}
		}
		if confidence <= minEntityScore {
			continue
		}
		entity := models.Entity{Name: name, Confidence: confidence}
		if id := logo.GetEntity().GetEntityId(); id != "" {
			entity.Links = []string{fmt.Sprintf("https://www.google.com/search?kgmid=%s", id)}
		}
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Confidence != entities[j].Confidence {
			return entities[i].Confidence > entities[j].Confidence
		}
		return entities[i].Name < entities[j].Name
	})
	return entities
}

// collectTextDetections deduplicates on-screen text by trimmed content and
// drops fragments shorter than three characters.
func collectTextDetections(r *videointelligencepb.VideoAnnotationResults) []models.TextDetection {
	best := map[string]float64{}
	for _, ann := range r.GetTextAnnotations() {
		text := strings.TrimSpace(ann.GetText())
		if utf8.RuneCountInString(text) < minTextRunes {
			continue
		}
		var confidence float64
		for _, seg := range ann.GetSegments() {
			if c := float64(seg.GetConfidence()) * 100; c > confidence {
				confidence = c
			}
		}
		if confidence > best[text] {
			best[text] = confidence
		}
	}

	detections := make([]models.TextDetection, 0, len(best))
	for text, confidence := range best {
		detections = append(detections, models.TextDetection{Text: text, Confidence: confidence})
	}
	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Confidence != detections[j].Confidence {
			return detections[i].Confidence > detections[j].Confidence
		}
		return detections[i].Text < detections[j].Text
	})
	return detections
}

// likelihoodScore maps the detector's likelihood enum onto the 0-100
// confidence scale used by the moderation threshold.
var likelihoodScore = map[videointelligencepb.Likelihood]float64{
	videointelligencepb.Likelihood_VERY_UNLIKELY: 5,
	videointelligencepb.Likelihood_UNLIKELY:      25,
	videointelligencepb.Likelihood_POSSIBLE:      50,
	videointelligencepb.Likelihood_LIKELY:        75,
	videointelligencepb.Likelihood_VERY_LIKELY:   95,
}

// collectModerationFlags surfaces at most one explicit-content flag, scored
// by the strongest frame likelihood over the threshold.
func collectModerationFlags(r *videointelligencepb.VideoAnnotationResults) []models.ModerationFlag {
	var confidence float64
	for _, frame := range r.GetExplicitAnnotation().GetFrames() {
		if score := likelihoodScore[frame.GetPornographyLikelihood()]; score > confidence {
			confidence = score
		}
	}
	if confidence <= minModerationHit {
		return nil
	}
	return []models.ModerationFlag{{Name: "Explicit Content", Confidence: confidence}}
}

// categoryBuckets is the fixed label taxonomy, matched by case-insensitive
// substring against label names. First match wins.
var categoryBuckets = []struct {
	name     string
	keywords []string
}{
	{"People", []string{"person", "people", "human", "man", "woman"}},
	{"Animals", []string{"animal", "dog", "cat", "bird", "wildlife"}},
	{"Transportation", []string{"car", "vehicle", "transportation", "road"}},
	{"Nature", []string{"nature", "landscape", "tree", "water", "sky"}},
	{"Architecture", []string{"building", "architecture", "city", "urban"}},
}

// deriveCategories buckets the top labels, accumulates confidence per
// bucket, and returns bucket names by descending total.
func deriveCategories(labels []models.Label) []string {
	top := labels
	if len(top) > topLabelsForStats {
		top = top[:topLabelsForStats]
	}
	totals := map[string]float64{}
	for _, label := range top {
		name := strings.ToLower(label.Name)
		bucket := "Other"
		for _, b := range categoryBuckets {
			if containsAny(name, b.keywords) {
				bucket = b.name
				break
			}
		}
		totals[bucket] += label.Confidence
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxCategories {
		names = names[:maxCategories]
	}
	return names
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
