package models

import "time"

type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "Critical"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelLow      RiskLevel = "Low"
)

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

type AlertStatus string

const (
	AlertStatusActive     AlertStatus = "Active"
	AlertStatusResolved   AlertStatus = "Resolved"
	AlertStatusArchived   AlertStatus = "Archived"
	AlertStatusSuperseded AlertStatus = "Superseded"
)

// MetadataTypeNewsScraping marks alerts created by the news ingestion path.
// The retention purge only touches alerts carrying this marker.
const MetadataTypeNewsScraping = "news_scraping"

type Alert struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	RawContent  string      `json:"rawContent,omitempty"`
	Source      string      `json:"source"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory,omitempty"`
	RiskLevel   RiskLevel   `json:"riskLevel"`
	Severity    Severity    `json:"severity"`
	Status      AlertStatus `json:"status"`
	Priority    int         `json:"priority"` // 1..10, lower is more urgent
	Tags        StringList  `json:"tags"`
	Metadata    Metadata    `json:"metadata"`
	PublishedAt time.Time   `json:"publishedAt"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// PriorityForRiskLevel is the default priority used when an alert is created
// manually without an explicit priority.
func PriorityForRiskLevel(rl RiskLevel) int {
	switch rl {
	case RiskLevelCritical:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 3
	case RiskLevelLow:
		return 4
	default:
		return 3
	}
}

// AlertAnalysis is the AI-generated elaboration attached to an alert.
// At most one analysis exists per alert; re-analysis replaces it.
type AlertAnalysis struct {
	ID              string     `json:"id"`
	AlertID         string     `json:"alertId"`
	Summary         string     `json:"summary"`
	KeyRequirements StringList `json:"keyRequirements"`
	Recommendations StringList `json:"recommendations"`
	RiskFactors     StringList `json:"riskFactors"`
	Deadlines       StringList `json:"deadlines"`
	ModelVersion    string     `json:"modelVersion"`
	CreatedAt       time.Time  `json:"createdAt"`
}
