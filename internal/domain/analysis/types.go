package analysis

import (
	"time"

	"github.com/medimind/medimind-api/pkg/metrics"
)

// Severity levels produced by the classifier.
const (
	SeverityMild     = 1
	SeverityModerate = 2
	SeveritySevere   = 3
)

// Triage statuses attached to a stored record.
const (
	StatusReviewed      = "Reviewed"
	StatusNeedsReview   = "Needs Review"
	StatusNeedsFollowUp = "Needs Follow-up"
)

// Prediction is one candidate condition returned by the generation service.
type Prediction struct {
	Disease         string   `json:"disease"`
	Confidence      float64  `json:"confidence"`
	Description     string   `json:"description"`
	Recovery        []string `json:"recovery"`
	MatchedSymptoms []string `json:"matchedSymptoms"`
	Severity        int      `json:"severity"`
	Specialist      string   `json:"specialist"`
}

// Record is one persisted symptom-check event.
type Record struct {
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Symptoms    string       `json:"symptoms"`
	Predictions []Prediction `json:"predictions"`
	Status      string       `json:"status,omitempty"`
}

// TriageStatus returns the record status, defaulting when absent.
func (r Record) TriageStatus() string {
	if r.Status == "" {
		return StatusNeedsReview
	}
	return r.Status
}

// Time parses the record timestamp; the zero time is returned when malformed.
func (r Record) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// IsSevere reports whether the top prediction is severity 3.
func (r Record) IsSevere() bool {
	return len(r.Predictions) > 0 && r.Predictions[0].Severity == SeveritySevere
}

// SeverityLabel maps a numeric severity to its display label.
func SeverityLabel(severity int) string {
	switch severity {
	case SeverityMild:
		return "Mild"
	case SeverityModerate:
		return "Moderate"
	case SeveritySevere:
		return "Severe"
	default:
		return "Unknown"
	}
}

// Request is the incoming analysis payload.
type Request struct {
	Symptoms string `json:"symptoms"`
}

// Response is returned to the caller after one analysis cycle.
type Response struct {
	Symptoms        string              `json:"symptoms"`
	MatchedSymptoms []string            `json:"matchedSymptoms"`
	Predictions     []Prediction        `json:"predictions"`
	Saved           bool                `json:"saved"`
	TokenUsage      *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// Progress describes the cosmetic progress of an in-flight analysis.
type Progress struct {
	Analyzing bool `json:"analyzing"`
	Percent   int  `json:"percent"`
}

// Config configures the analysis pipeline.
type Config struct {
	Temperature    float32
	MaxPredictions int
	RecoverySteps  int
	ProgressTick   time.Duration
	ProgressStep   int
}
