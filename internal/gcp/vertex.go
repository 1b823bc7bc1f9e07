package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

// DescriberSystemPrompt frames the description model. The per-request user
// prompt is assembled by the describe package from the analysis records.
const DescriberSystemPrompt = "You are a video content analyst. Given structured visual and audio analysis of a video, you write a single engaging, accurate natural-language description of its content. Write 2-4 sentences, present tense, no preamble, no markdown."

// VertexClient holds the pre-configured generative model for description
// synthesis.
type VertexClient struct {
	DescriberModel *genai.GenerativeModel
	modelName      string
	baseClient     *genai.Client
}

// NewVertexClient creates a client with the describer model configured from
// the generation settings.
func NewVertexClient(ctx context.Context, projectID, region string, gen config.GenerationConfig) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	describerModel := baseClient.GenerativeModel(gen.Model)
	describerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DescriberSystemPrompt)},
	}
	describerModel.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: genai.Ptr[int32](gen.MaxOutputTokens),
		Temperature:     genai.Ptr[float32](gen.Temperature),
	}
	// Analysis output may legitimately reference moderation findings, so the
	// model must not refuse to describe flagged content.
	describerModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		DescriberModel: describerModel,
		modelName:      gen.Model,
		baseClient:     baseClient,
	}, nil
}

// Generate runs one description generation and returns the extracted text
// with its usage metrics.
func (c *VertexClient) Generate(ctx context.Context, prompt string) (string, models.GenerationMetrics, error) {
	start := time.Now()
	resp, err := c.DescriberModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", models.GenerationMetrics{}, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", models.GenerationMetrics{}, fmt.Errorf("gemini response contained no text parts")
	}

	metrics := models.GenerationMetrics{
		Model:     c.modelName,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		metrics.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		metrics.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return text, metrics, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractText parses the model's response and robustly extracts text content.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(content.String())
}
