package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/africaresearchbase/arb/internal/scoring"
	"github.com/tidwall/gjson"
)

// DatasetMetadata carries the upload fields the analysis prompt is built from.
type DatasetMetadata struct {
	Title         string
	Description   string
	ResearchField string
	Tags          []string
	FileName      string
	RowCount      int
	ColumnCount   int
}

// Analysis is the outcome of a dataset quality analysis.
type Analysis struct {
	ConfidenceScore int    // 0-100
	Summary         string // free-text assessment
}

// extractionFallback is used when the model returns prose without a
// parseable confidence field.
const extractionFallback = 75

// Analyzer runs dataset quality analysis through a Provider.
type Analyzer struct {
	provider Provider
	logger   *slog.Logger
}

// NewAnalyzer wires a provider to the analysis prompt and parser.
func NewAnalyzer(provider Provider, logger *slog.Logger) *Analyzer {
	return &Analyzer{provider: provider, logger: logger}
}

// AnalyzeDataset asks the model for a structured quality assessment.
// The prompt requests JSON with a numeric confidence_score field; when
// the model answers in prose anyway, the score is mined from the text.
func (a *Analyzer) AnalyzeDataset(ctx context.Context, meta DatasetMetadata) (Analysis, error) {
	prompt := buildAnalysisPrompt(meta)

	text, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return Analysis{}, fmt.Errorf("analysis request failed: %w", err)
	}

	return parseAnalysis(text, a.logger), nil
}

// buildAnalysisPrompt renders the quality assessment prompt.
func buildAnalysisPrompt(meta DatasetMetadata) string {
	var b strings.Builder
	b.WriteString("You are reviewing a research dataset submitted to an African research data platform.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "Description: %s\n", meta.Description)
	fmt.Fprintf(&b, "Research field: %s\n", meta.ResearchField)
	if len(meta.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(meta.Tags, ", "))
	}
	fmt.Fprintf(&b, "File: %s (%d rows, %d columns)\n\n", meta.FileName, meta.RowCount, meta.ColumnCount)
	b.WriteString("Assess the dataset's likely quality and research value based on this metadata. ")
	b.WriteString("Respond with JSON only, no markdown fences, in this exact shape:\n")
	b.WriteString(`{"confidence_score": <integer 0-100>, "analysis": "<2-4 sentence assessment>"}`)
	return b.String()
}

// parseAnalysis extracts the structured fields from model output,
// falling back to digit mining over the raw text.
func parseAnalysis(text string, logger *slog.Logger) Analysis {
	cleaned := stripMarkdownCodeFences(text)

	score := gjson.Get(cleaned, "confidence_score")
	summary := gjson.Get(cleaned, "analysis")

	if score.Exists() {
		return Analysis{
			ConfidenceScore: scoring.ClampScore(int(score.Int())),
			Summary:         firstNonEmpty(summary.String(), cleaned),
		}
	}

	if logger != nil {
		logger.Warn("model output missing confidence_score field, extracting from text")
	}
	return Analysis{
		ConfidenceScore: scoring.ExtractConfidence(cleaned, extractionFallback),
		Summary:         cleaned,
	}
}

// stripMarkdownCodeFences removes markdown code fences from JSON responses.
func stripMarkdownCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
