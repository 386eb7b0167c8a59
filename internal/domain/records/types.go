package records

import (
	"time"

	"github.com/medimind/medimind-api/internal/domain/analysis"
)

// Sort keys accepted by the recent-analyses listing.
const (
	SortByTime     = "time"
	SortBySeverity = "severity"
	SortByPatient  = "patient"
)

// PatientDocument is one patient with their stored analysis history.
type PatientDocument struct {
	UserID    int64
	FullName  string
	Email     string
	PhotoURL  string
	CreatedAt time.Time
	Analyses  []analysis.Record
}

// Stats summarizes the whole patient population for the dashboard header.
type Stats struct {
	TotalPatients   int `json:"totalPatients"`
	NewPatients     int `json:"newPatients"`
	PrevNewPatients int `json:"prevNewPatients"`
	TotalAnalyses   int `json:"totalAnalyses"`
	SevereCases     int `json:"severeCases"`
	PendingReview   int `json:"pendingReview"`
	ActivePatients  int `json:"activePatients"`
}

// RecentQuery selects and orders the recent-analyses feed.
type RecentQuery struct {
	SortBy   string `form:"sortBy"`
	Severity string `form:"severity"`
	Status   string `form:"status"`
}

// RecentAnalysis is one feed row: a single analysis attributed to a patient.
type RecentAnalysis struct {
	RecordID      string `json:"recordId"`
	PatientID     int64  `json:"patientId"`
	PatientName   string `json:"patientName"`
	Symptoms      string `json:"symptoms"`
	TopDisease    string `json:"topDisease"`
	Severity      int    `json:"severity"`
	SeverityLabel string `json:"severityLabel"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
}

// PatientSummary is one roster row with rollup counters.
type PatientSummary struct {
	PatientID     int64  `json:"patientId"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	AnalysisCount int    `json:"analysisCount"`
	SevereCases   int    `json:"severeCases"`
	LastAnalysis  string `json:"lastAnalysis,omitempty"`
}

// PatientDetail is the full record view for one patient.
type PatientDetail struct {
	PatientID int64             `json:"patientId"`
	FullName  string            `json:"fullName"`
	Email     string            `json:"email"`
	PhotoURL  string            `json:"photoUrl,omitempty"`
	Analyses  []analysis.Record `json:"analyses"`
}

// SevereCase is a materialized row for a severe analysis, kept current on
// every dashboard read so the severe-case list survives history rewrites.
type SevereCase struct {
	RecordID    string    `json:"recordId"`
	PatientID   int64     `json:"patientId"`
	PatientName string    `json:"patientName"`
	Disease     string    `json:"disease"`
	Severity    int       `json:"severity"`
	Symptoms    string    `json:"symptoms"`
	Status      string    `json:"status"`
	Timestamp   string    `json:"timestamp"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
