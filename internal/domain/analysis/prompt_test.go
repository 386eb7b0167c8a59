package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
)

func TestBuildPromptEmbedsSymptoms(t *testing.T) {
	prompt := BuildPrompt(`fever, "chills" and cough`)
	require.Contains(t, prompt, `fever, \"chills\" and cough`)
	require.Contains(t, prompt, "recovery")
	require.Contains(t, prompt, "specialist")
}

func TestResponseSchemaShape(t *testing.T) {
	var schema *gemini.Schema = ResponseSchema()
	require.Equal(t, "OBJECT", schema.Type)

	predictions, ok := schema.Properties["predictions"]
	require.True(t, ok)
	require.Equal(t, "ARRAY", predictions.Type)
	require.NotNil(t, predictions.Items)
	require.Equal(t, "OBJECT", predictions.Items.Type)

	for _, field := range []string{"disease", "confidence", "description", "recovery", "matchedSymptoms", "severity", "specialist"} {
		_, ok := predictions.Items.Properties[field]
		require.True(t, ok, "schema missing field %s", field)
	}

	recovery := predictions.Items.Properties["recovery"]
	require.Equal(t, "ARRAY", recovery.Type)
	require.Equal(t, "STRING", recovery.Items.Type)
}

func TestRecordHelpers(t *testing.T) {
	r := Record{Timestamp: "2026-03-01T09:30:00Z", Predictions: []Prediction{{Severity: SeveritySevere}}}
	require.False(t, r.Time().IsZero())
	require.True(t, r.IsSevere())
	require.Equal(t, StatusNeedsReview, r.TriageStatus())

	malformed := Record{Timestamp: "yesterday"}
	require.True(t, malformed.Time().IsZero())
	require.False(t, malformed.IsSevere())

	reviewed := Record{Status: StatusReviewed}
	require.Equal(t, StatusReviewed, reviewed.TriageStatus())
}

func TestSeverityLabel(t *testing.T) {
	require.Equal(t, "Mild", SeverityLabel(SeverityMild))
	require.Equal(t, "Moderate", SeverityLabel(SeverityModerate))
	require.Equal(t, "Severe", SeverityLabel(SeveritySevere))
	require.Equal(t, "Unknown", SeverityLabel(0))
}
