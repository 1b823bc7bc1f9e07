package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/abadojack/whatlanggo"
	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

const (
	maxSpeakerSegments  = 10
	maxAlternatives     = 10
	minAlternativeScore = 0.5
	diarizationSpeakers = 10
)

// AudioStarter adapts the generated client to StartFunc, requesting speech
// transcription with diarization and word confidence.
func AudioStarter(client *videointelligence.Client, cfg config.AnalysisConfig) StartFunc {
	return func(ctx context.Context, gcsURI string) (AnnotateOperation, error) {
		op, err := client.AnnotateVideo(ctx, &videointelligencepb.AnnotateVideoRequest{
			InputUri: gcsURI,
			Features: []videointelligencepb.Feature{
				videointelligencepb.Feature_SPEECH_TRANSCRIPTION,
			},
			VideoContext: &videointelligencepb.VideoContext{
				SpeechTranscriptionConfig: &videointelligencepb.SpeechTranscriptionConfig{
					LanguageCode:               cfg.LanguageCode,
					MaxAlternatives:            2,
					EnableAutomaticPunctuation: true,
					EnableWordConfidence:       true,
					EnableSpeakerDiarization:   true,
					DiarizationSpeakerCount:    diarizationSpeakers,
				},
			},
		})
		if err != nil {
			return nil, err
		}
		return op, nil
	}
}

// AudioAnalyzer runs speech transcription for one video and normalizes the
// result.
type AudioAnalyzer struct {
	start    StartFunc
	interval time.Duration
	timeout  time.Duration
}

// NewAudioAnalyzer builds an analyzer with the poll bounds from cfg.
func NewAudioAnalyzer(start StartFunc, cfg config.AnalysisConfig) *AudioAnalyzer {
	return &AudioAnalyzer{
		start:    start,
		interval: cfg.AudioPollInterval,
		timeout:  cfg.AudioPollTimeout,
	}
}

// Analyze starts transcription and polls it to a terminal state. Like the
// visual analyzer it never returns an error; a video without speech yields
// an empty record with no Error, which downstream treats as no audio
// signal.
func (a *AudioAnalyzer) Analyze(ctx context.Context, gcsURI string) *models.AudioAnalysis {
	logCtx := slog.With("analyzer", "audio", "gcsUri", gcsURI)
	logCtx.Info("Starting audio analysis.")

	op, err := a.start(ctx, gcsURI)
	if err != nil {
		logCtx.Error("Failed to start speech transcription.", "error", err)
		return audioError(fmt.Sprintf("audio analysis failed to start: %v", err))
	}

	deadline := time.Now().Add(a.timeout)
	var resp *videointelligencepb.AnnotateVideoResponse
	for {
		r, err := op.Poll(ctx)
		if err != nil {
			logCtx.Error("Speech transcription failed.", "error", err)
			return audioError(fmt.Sprintf("audio analysis failed: %v", err))
		}
		if op.Done() {
			resp = r
			break
		}
		if time.Now().After(deadline) {
			logCtx.Warn("Speech transcription timed out.", "timeout", a.timeout.String())
			return audioError(fmt.Sprintf("audio analysis timed out after %s", a.timeout))
		}
		select {
		case <-ctx.Done():
			logCtx.Warn("Context cancelled while polling speech transcription.", "error", ctx.Err())
			return audioError(fmt.Sprintf("audio analysis cancelled: %v", ctx.Err()))
		case <-time.After(a.interval):
		}
	}

	record := normalizeAudio(resp)
	if record.Error != "" {
		logCtx.Warn("Audio analysis degraded.", "error", record.Error)
	} else {
		logCtx.Info("Audio analysis complete.",
			"transcriptChars", len(record.Transcript),
			"wordCount", record.WordCount,
			"speakerSegments", len(record.SpeakerSegments),
			"language", record.Language,
		)
	}
	return record
}

func audioError(msg string) *models.AudioAnalysis {
	return &models.AudioAnalysis{Error: msg}
}

// normalizeAudio reduces a raw transcription response to the record shape.
// A response without speech produces an empty record, not an error.
func normalizeAudio(resp *videointelligencepb.AnnotateVideoResponse) *models.AudioAnalysis {
	results := resp.GetAnnotationResults()
	if len(results) == 0 {
		return audioError("audio analysis returned no results")
	}
	r := results[0]
	if e := r.GetError(); e.GetMessage() != "" {
		return audioError(fmt.Sprintf("audio analysis failed: %s", e.GetMessage()))
	}

	transcriptions := r.GetSpeechTranscriptions()

	var (
		parts           []string
		confidences     []float64
		language        string
		duration        float64
		alternatives    []models.Alternative
		transcriptWords int
	)
	for _, tr := range transcriptions {
		alts := tr.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		primary := alts[0]

		// The diarization aggregate carries words but no transcript of its
		// own; joining it would duplicate the text, so transcript-derived
		// stats come only from spoken chunks.
		if text := strings.TrimSpace(primary.GetTranscript()); text != "" {
			parts = append(parts, text)
			for _, w := range primary.GetWords() {
				if c := float64(w.GetConfidence()); c > 0 {
					confidences = append(confidences, c)
				}
			}
		}
		for _, w := range primary.GetWords() {
			if end := w.GetEndTime().AsDuration().Seconds(); end > duration {
				duration = end
			}
		}
		if language == "" && tr.GetLanguageCode() != "" {
			language = tr.GetLanguageCode()
		}
		for _, alt := range alts[1:] {
			if len(alternatives) >= maxAlternatives {
				break
			}
			text := strings.TrimSpace(alt.GetTranscript())
			if text == "" || float64(alt.GetConfidence()) <= minAlternativeScore {
				continue
			}
			alternatives = append(alternatives, models.Alternative{
				Word:       text,
				Confidence: float64(alt.GetConfidence()),
			})
		}
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	transcriptWords = len(strings.Fields(transcript))

	var avgConfidence float64
	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		avgConfidence = sum / float64(len(confidences))
	}

	if language == "" && transcript != "" {
		if info := whatlanggo.Detect(transcript); info.IsReliable() {
			language = info.Lang.Iso6391()
		}
	}

	return &models.AudioAnalysis{
		Transcript:      transcript,
		Confidence:      avgConfidence,
		Language:        language,
		SpeakerSegments: collectSpeakerSegments(transcriptions),
		Alternatives:    alternatives,
		WordCount:       transcriptWords,
		Duration:        duration,
	}
}

// collectSpeakerSegments groups consecutive same-speaker words into
// segments. Tagged words live in the final cumulative transcription when
// diarization is enabled.
func collectSpeakerSegments(transcriptions []*videointelligencepb.SpeechTranscription) []models.SpeakerSegment {
	var tagged []*videointelligencepb.WordInfo
	for i := len(transcriptions) - 1; i >= 0; i-- {
		alts := transcriptions[i].GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		var found []*videointelligencepb.WordInfo
		for _, w := range alts[0].GetWords() {
			if w.GetSpeakerTag() != 0 {
				found = append(found, w)
			}
		}
		if len(found) > 0 {
			tagged = found
			break
		}
	}
	if len(tagged) == 0 {
		return nil
	}

	var segments []models.SpeakerSegment
	start := 0
	for i := 1; i <= len(tagged); i++ {
		if i < len(tagged) && tagged[i].GetSpeakerTag() == tagged[start].GetSpeakerTag() {
			continue
		}
		span := tagged[start:i]
		words := make([]string, 0, len(span))
		for _, w := range span {
			words = append(words, w.GetWord())
		}
		segments = append(segments, models.SpeakerSegment{
			Speaker:   fmt.Sprintf("speaker_%d", span[0].GetSpeakerTag()),
			StartTime: span[0].GetStartTime().AsDuration().Seconds(),
			EndTime:   span[len(span)-1].GetEndTime().AsDuration().Seconds(),
			Text:      strings.Join(words, " "),
		})
		if len(segments) == maxSpeakerSegments {
			break
		}
		start = i
	}
	return segments
}
