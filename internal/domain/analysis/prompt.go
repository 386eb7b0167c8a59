package analysis

import (
	"fmt"

	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
)

// BuildPrompt renders the diagnostic instruction for one symptom description.
// It is a pure function of the input text; empty input is embedded as-is.
func BuildPrompt(symptoms string) string {
	return fmt.Sprintf(`Act as a medical diagnostic AI. Analyze the following user-reported symptoms: %q. Based on your knowledge, identify the top 3 most likely medical conditions. For each condition, provide:
1.  "disease": The name of the condition.
2.  "confidence": A confidence score (0-100).
3.  "description": A brief description.
4.  "recovery": An array of 4 recovery/management steps.
5.  "matchedSymptoms": An array of the key symptoms from the user's text.
6.  "severity": A severity score from 1 (mild) to 3 (severe/emergency).
7.  "specialist": The type of medical specialist to consult (e.g., "Cardiologist", "Neurologist", "General Practitioner").

Return the response as a JSON object with a single key "predictions" which is an array of these objects.`, symptoms)
}

// ResponseSchema describes the structured-output contract enforced by the
// generation service. Local code still treats the response as untrusted.
func ResponseSchema() *gemini.Schema {
	return &gemini.Schema{
		Type: "OBJECT",
		Properties: map[string]gemini.Schema{
			"predictions": {
				Type: "ARRAY",
				Items: &gemini.Schema{
					Type: "OBJECT",
					Properties: map[string]gemini.Schema{
						"disease":     {Type: "STRING"},
						"confidence":  {Type: "NUMBER"},
						"description": {Type: "STRING"},
						"recovery": {
							Type:  "ARRAY",
							Items: &gemini.Schema{Type: "STRING"},
						},
						"matchedSymptoms": {
							Type:  "ARRAY",
							Items: &gemini.Schema{Type: "STRING"},
						},
						"severity":   {Type: "NUMBER"},
						"specialist": {Type: "STRING"},
					},
				},
			},
		},
	}
}
