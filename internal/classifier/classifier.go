// Package classifier assigns risk level, severity and priority to raw news
// items using keyword heuristics. Classification is deterministic and
// side-effect free.
package classifier

import (
	"strings"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

// Tier-1 keywords force Critical risk regardless of other content.
var criticalKeywords = []string{
	"breach", "hack", "cyberattack", "data breach", "security breach",
	"violation", "fine", "penalty", "investigation", "lawsuit",
	"outage", "downtime", "critical", "emergency",
}

// Tier-2 keywords yield High risk when no tier-1 keyword matches.
var highKeywords = []string{
	"vulnerability", "threat", "risk", "compliance", "regulatory",
	"audit", "warning", "alert", "issue", "problem",
}

// Regulators whose tags bump priority.
var highPriorityTags = []string{"sec", "fca", "gdpr", "hipaa", "sox"}

// Input is the raw material for one classification: title and body are
// scanned as substrings, tags as exact (case-folded) elements.
type Input struct {
	Title          string
	Body           string
	Tags           []string
	Category       string
	SentimentScore *float64
}

type Result struct {
	RiskLevel models.RiskLevel
	Severity  models.Severity
	Priority  int
}

// Classify runs all three heuristics over one input.
func Classify(in Input) Result {
	return Result{
		RiskLevel: RiskLevelFor(in),
		Severity:  SeverityFor(in),
		Priority:  PriorityFor(in),
	}
}

// RiskLevelFor scans title, body and tags for the two keyword tiers. A
// sentiment score below -0.5 also forces High. The heuristic never returns
// Low; news items with no signal default to Medium.
func RiskLevelFor(in Input) models.RiskLevel {
	title := strings.ToLower(in.Title)
	body := strings.ToLower(in.Body)
	tags := lowered(in.Tags)

	for _, kw := range criticalKeywords {
		if strings.Contains(title, kw) || strings.Contains(body, kw) || tags.Contains(kw) {
			return models.RiskLevelCritical
		}
	}
	for _, kw := range highKeywords {
		if strings.Contains(title, kw) || strings.Contains(body, kw) || tags.Contains(kw) {
			return models.RiskLevelHigh
		}
	}
	if in.SentimentScore != nil && *in.SentimentScore < -0.5 {
		return models.RiskLevelHigh
	}
	return models.RiskLevelMedium
}

// SeverityFor scans title and body only; tags do not contribute.
func SeverityFor(in Input) models.Severity {
	title := strings.ToLower(in.Title)
	body := strings.ToLower(in.Body)

	has := func(kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(title, kw) || strings.Contains(body, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case has("critical", "emergency"):
		return models.SeverityCritical
	case has("high", "urgent"):
		return models.SeverityHigh
	case has("medium", "moderate"):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// PriorityFor starts at 1 and adds weight for category, regulator tags and
// negative sentiment, clamped to 10.
func PriorityFor(in Input) int {
	priority := 1

	switch in.Category {
	case "compliance_news", "cybersecurity_news":
		priority += 2
	case "vendor_news":
		priority++
	}

	tags := lowered(in.Tags)
	for _, t := range highPriorityTags {
		if tags.Contains(t) {
			priority += 2
			break
		}
	}

	if in.SentimentScore != nil && *in.SentimentScore < -0.3 {
		priority++
	}

	if priority > 10 {
		priority = 10
	}
	return priority
}

func lowered(tags []string) models.StringList {
	out := make(models.StringList, len(tags))
	for i, t := range tags {
		out[i] = strings.ToLower(t)
	}
	return out
}
