package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Vendor is a reference entity used to tag or originate alerts.
// The classification pipeline never mutates vendors.
type Vendor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Website     string    `json:"website,omitempty"`
	Criticality string    `json:"criticality"`
	Monitored   bool      `json:"monitored"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RegulatoryBody struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Acronym      string    `json:"acronym,omitempty"`
	Jurisdiction string    `json:"jurisdiction"`
	Type         string    `json:"type"`
	Website      string    `json:"website,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

const (
	EmailTypeDailyDigest   = "daily-digest"
	EmailTypeCriticalAlert = "critical-alert"
)

// EmailDelivery is an append-only delivery log. The only legal mutation is
// the status transition pending -> sent or pending -> failed.
type EmailDelivery struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject"`
	Status    DeliveryStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Metadata  Metadata       `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	SentAt    *time.Time     `json:"sentAt,omitempty"`
}

// MonitoringLog is the append-only audit trail written by every background
// operation (ingestion run, digest send, retention purge).
type MonitoringLog struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SourceID     string    `json:"sourceId,omitempty"`
	Status       string    `json:"status"` // success | error
	Message      string    `json:"message"`
	ResponseTime int64     `json:"responseTime"` // milliseconds
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
