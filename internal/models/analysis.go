package models

// Label is one visual label detection, confidence on a 0-100 scale.
type Label struct {
	Name        string  `firestore:"name" json:"name"`
	Confidence  float64 `firestore:"confidence" json:"confidence"`
	Occurrences int     `firestore:"occurrences" json:"occurrences"`
}

// Entity is a recognized named entity (logo, landmark, public figure)
// with optional knowledge-graph links.
type Entity struct {
	Name       string   `firestore:"name" json:"name"`
	Confidence float64  `firestore:"confidence" json:"confidence"`
	Links      []string `firestore:"links,omitempty" json:"links,omitempty"`
}

// TextDetection is one piece of on-screen text.
type TextDetection struct {
	Text       string  `firestore:"text" json:"text"`
	Confidence float64 `firestore:"confidence" json:"confidence"`
}

// ModerationFlag marks potentially sensitive content.
type ModerationFlag struct {
	Name       string  `firestore:"name" json:"name"`
	Confidence float64 `firestore:"confidence" json:"confidence"`
	ParentName string  `firestore:"parentName,omitempty" json:"parent_name,omitempty"`
}

// VisualAnalysis is the normalized output of the visual analyzer. A non-empty
// Error means the analyzer failed or timed out; all list fields are then
// empty and the record contributes no visual signal downstream.
type VisualAnalysis struct {
	Labels          []Label          `firestore:"labels,omitempty" json:"labels,omitempty"`
	Entities        []Entity         `firestore:"entities,omitempty" json:"entities,omitempty"`
	TextDetections  []TextDetection  `firestore:"textDetections,omitempty" json:"text_detections,omitempty"`
	ModerationFlags []ModerationFlag `firestore:"moderationFlags,omitempty" json:"moderation_flags,omitempty"`
	Categories      []string         `firestore:"categories,omitempty" json:"categories,omitempty"`
	Error           string           `firestore:"error,omitempty" json:"error,omitempty"`
}

// HasSignal reports whether the record carries any usable visual data.
func (v *VisualAnalysis) HasSignal() bool {
	if v == nil || v.Error != "" {
		return false
	}
	return len(v.Labels) > 0 || len(v.Entities) > 0 || len(v.TextDetections) > 0
}

// SpeakerSegment is one diarized span of the transcript.
type SpeakerSegment struct {
	Speaker   string  `firestore:"speaker" json:"speaker"`
	StartTime float64 `firestore:"startTime" json:"start_time"`
	EndTime   float64 `firestore:"endTime" json:"end_time"`
	Text      string  `firestore:"text,omitempty" json:"text,omitempty"`
}

// Alternative is a low-confidence competing hypothesis for a spoken word.
type Alternative struct {
	Word       string  `firestore:"word" json:"word"`
	Confidence float64 `firestore:"confidence" json:"confidence"`
}

// AudioAnalysis is the normalized output of the speech analyzer, with the
// same degrade-don't-fail Error semantics as VisualAnalysis.
type AudioAnalysis struct {
	Transcript      string           `firestore:"transcript,omitempty" json:"transcript,omitempty"`
	Confidence      float64          `firestore:"confidence,omitempty" json:"confidence,omitempty"`
	Language        string           `firestore:"language,omitempty" json:"language,omitempty"`
	SpeakerSegments []SpeakerSegment `firestore:"speakerSegments,omitempty" json:"speaker_segments,omitempty"`
	Alternatives    []Alternative    `firestore:"alternatives,omitempty" json:"alternatives,omitempty"`
	WordCount       int              `firestore:"wordCount,omitempty" json:"word_count,omitempty"`
	Duration        float64          `firestore:"duration,omitempty" json:"duration,omitempty"`
	Error           string           `firestore:"error,omitempty" json:"error,omitempty"`
}

// HasTranscript reports whether the record carries a usable transcript.
func (a *AudioAnalysis) HasTranscript() bool {
	return a != nil && a.Error == "" && a.Transcript != ""
}

// GenerationMetrics captures token usage and latency of one description
// generation. Fallback marks the deterministic template path, which reports
// zeroed counters.
type GenerationMetrics struct {
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMS    int64  `json:"latency_ms"`
	Fallback     bool   `json:"fallback"`
}

// AnalysisResult is the assembled outcome of one pipeline run: what gets
// cached, persisted onto the job record, and returned by the result API.
type AnalysisResult struct {
	Description     string            `json:"description"`
	ConfidenceScore float64           `json:"confidence_score"`
	Visual          *VisualAnalysis   `json:"visual_analysis,omitempty"`
	Audio           *AudioAnalysis    `json:"audio_analysis,omitempty"`
	Metrics         GenerationMetrics `json:"-"`
}
