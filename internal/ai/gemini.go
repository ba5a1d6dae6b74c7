// Package ai generates structured alert analyses through the Gemini API.
// Model failures of any kind degrade to a fixed default analysis; an analyze
// request never fails because the model misbehaved.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

type Analyzer interface {
	Analyze(ctx context.Context, alert *models.Alert) (*models.AlertAnalysis, error)
	Close() error
}

type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Analyzer = (*GeminiAnalyzer)(nil)

const defaultModel = "gemini-1.5-flash"

// NewAnalyzer builds a Gemini-backed analyzer, or a fallback-only analyzer
// when no API key is configured.
func NewAnalyzer(ctx context.Context, apiKey, model string) (Analyzer, error) {
	if apiKey == "" {
		slog.Warn("no Gemini API key configured, analyses will use the default template")
		return &FallbackAnalyzer{}, nil
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAnalyzer{
		client:  client,
		model:   model,
		timeout: 30 * time.Second,
	}, nil
}

// analysisPayload is the JSON shape the model is instructed to produce.
type analysisPayload struct {
	Summary         string   `json:"summary"`
	KeyRequirements []string `json:"keyRequirements"`
	Recommendations []string `json:"recommendations"`
	RiskFactors     []string `json:"riskFactors"`
	Deadlines       []string `json:"deadlines"`
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, alert *models.Alert) (*models.AlertAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := buildPrompt(alert)

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.Error("gemini call failed, using default analysis", "alert", alert.ID, "error", err)
		return DefaultAnalysis(alert, g.model), nil
	}

	text := responseText(resp)
	payload, err := parsePayload(text)
	if err != nil {
		slog.Warn("gemini returned unparseable analysis, using default", "alert", alert.ID, "error", err)
		return DefaultAnalysis(alert, g.model), nil
	}

	return &models.AlertAnalysis{
		ID:              uuid.NewString(),
		AlertID:         alert.ID,
		Summary:         payload.Summary,
		KeyRequirements: payload.KeyRequirements,
		Recommendations: payload.Recommendations,
		RiskFactors:     payload.RiskFactors,
		Deadlines:       payload.Deadlines,
		ModelVersion:    g.model,
		CreatedAt:       time.Now(),
	}, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}

func buildPrompt(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString("You are an expert compliance analyst. Analyze this compliance alert and respond with a single JSON object, no prose, using exactly these keys: ")
	b.WriteString(`{"summary": string, "keyRequirements": [string], "recommendations": [string], "riskFactors": [string], "deadlines": [string]}`)
	b.WriteString("\n\nAlert:\n")
	fmt.Fprintf(&b, "Title: %s\n", alert.Title)
	fmt.Fprintf(&b, "Description: %s\n", alert.Description)
	fmt.Fprintf(&b, "Source: %s\n", alert.Source)
	fmt.Fprintf(&b, "Category: %s\n", alert.Category)
	fmt.Fprintf(&b, "Risk Level: %s\n", alert.RiskLevel)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// parsePayload tolerates markdown code fences around the JSON object, a
// common model habit.
func parsePayload(text string) (*analysisPayload, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if payload.Summary == "" {
		return nil, fmt.Errorf("analysis missing summary")
	}
	return &payload, nil
}

// DefaultAnalysis is the degradation target for every model failure.
func DefaultAnalysis(alert *models.Alert, modelVersion string) *models.AlertAnalysis {
	return &models.AlertAnalysis{
		ID:      uuid.NewString(),
		AlertID: alert.ID,
		Summary: "New compliance alert requires attention. Review details and assess impact on current processes.",
		KeyRequirements: models.StringList{
			"Review alert details and source documentation",
			"Assess impact on current compliance processes",
		},
		Recommendations: models.StringList{
			"Notify relevant team members and stakeholders",
			"Take appropriate action based on risk level",
		},
		RiskFactors: models.StringList{
			fmt.Sprintf("Classified as %s risk from source %s", alert.RiskLevel, alert.Source),
		},
		Deadlines:    nil,
		ModelVersion: modelVersion,
		CreatedAt:    time.Now(),
	}
}

// FallbackAnalyzer serves deployments without an LLM credential.
type FallbackAnalyzer struct{}

var _ Analyzer = (*FallbackAnalyzer)(nil)

func (f *FallbackAnalyzer) Analyze(ctx context.Context, alert *models.Alert) (*models.AlertAnalysis, error) {
	return DefaultAnalysis(alert, "fallback"), nil
}

func (f *FallbackAnalyzer) Close() error { return nil }
