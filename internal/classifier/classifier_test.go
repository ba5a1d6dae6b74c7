package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want models.RiskLevel
	}{
		{
			name: "data breach in title is critical",
			in:   Input{Title: "Major Data Breach at Payment Processor", Body: "routine quarterly update"},
			want: models.RiskLevelCritical,
		},
		{
			name: "critical keyword in body",
			in:   Input{Title: "Weekly roundup", Body: "The regulator announced a record fine against the bank"},
			want: models.RiskLevelCritical,
		},
		{
			name: "critical keyword as exact tag",
			in:   Input{Title: "Quiet week", Body: "nothing notable", Tags: []string{"Lawsuit"}},
			want: models.RiskLevelCritical,
		},
		{
			name: "vulnerability without tier-1 keyword is high",
			in:   Input{Title: "New vulnerability disclosed in TLS library", Body: "patch available"},
			want: models.RiskLevelHigh,
		},
		{
			name: "tier-1 wins over tier-2",
			in:   Input{Title: "Vulnerability leads to breach", Body: ""},
			want: models.RiskLevelCritical,
		},
		{
			name: "strongly negative sentiment forces high",
			in:   Input{Title: "Market update", Body: "quarterly figures", SentimentScore: floatPtr(-0.7)},
			want: models.RiskLevelHigh,
		},
		{
			name: "mildly negative sentiment is not enough",
			in:   Input{Title: "Market update", Body: "quarterly figures", SentimentScore: floatPtr(-0.4)},
			want: models.RiskLevelMedium,
		},
		{
			name: "no signal defaults to medium, never low",
			in:   Input{Title: "Conference announced", Body: "annual industry event dates published"},
			want: models.RiskLevelMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelFor(tt.in))
		})
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want models.Severity
	}{
		{"emergency in title", Input{Title: "Emergency patch released"}, models.SeverityCritical},
		{"urgent in body", Input{Title: "Update", Body: "urgent action required"}, models.SeverityHigh},
		{"moderate in body", Input{Title: "Update", Body: "moderate impact expected"}, models.SeverityMedium},
		{"no keyword", Input{Title: "Update", Body: "informational only"}, models.SeverityLow},
		{
			// Tags never contribute to severity, unlike risk level.
			"severity ignores tags",
			Input{Title: "Update", Body: "informational only", Tags: []string{"critical"}},
			models.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityFor(tt.in))
		})
	}
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"base", Input{Category: "general"}, 1},
		{"compliance news", Input{Category: "compliance_news"}, 3},
		{"vendor news", Input{Category: "vendor_news"}, 2},
		{"cybersecurity with GDPR tag", Input{Category: "cybersecurity_news", Tags: []string{"GDPR"}}, 5},
		{"regulator tag is case-insensitive", Input{Tags: []string{"HIPAA"}}, 3},
		{"negative sentiment adds one", Input{SentimentScore: floatPtr(-0.4)}, 2},
		{
			"regulator bonus applies once, not per tag",
			Input{Category: "cybersecurity_news", Tags: []string{"sec", "gdpr"}, SentimentScore: floatPtr(-0.9)},
			6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityFor(tt.in))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	in := Input{
		Title:          "Regulator opens investigation into vendor outage",
		Body:           "A major cloud provider suffered downtime affecting regulated workloads.",
		Tags:           []string{"FCA", "cloud"},
		Category:       "vendor_news",
		SentimentScore: floatPtr(-0.6),
	}

	first := Classify(in)
	second := Classify(in)
	assert.Equal(t, first, second)

	assert.Equal(t, models.RiskLevelCritical, first.RiskLevel)
	// 1 + 1 (vendor_news) + 2 (FCA) + 1 (sentiment) = 5
	assert.Equal(t, 5, first.Priority)
}
