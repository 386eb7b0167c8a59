package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
	"github.com/medimind/medimind-api/pkg/metrics"
	"github.com/medimind/medimind-api/pkg/util"
)

// Service exposes the symptom analysis pipeline.
type Service interface {
	Analyze(ctx context.Context, userID int64, req Request) (Response, error)
	Progress(ctx context.Context, userID int64) Progress
	History(ctx context.Context, userID int64) ([]Record, error)
}

// GenClient performs one generation call against the external service.
type GenClient interface {
	GenerateContent(ctx context.Context, req gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error)
}

type service struct {
	cfg      Config
	client   GenClient
	repo     Repository
	logger   *slog.Logger
	progress *progressTracker
	now      func() time.Time
}

// NewService wires up the analysis domain.
func NewService(cfg Config, client GenClient, repo Repository, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		client:   client,
		repo:     repo,
		logger:   logger.With("component", "analysis.service"),
		progress: newProgressTracker(cfg.ProgressTick, cfg.ProgressStep),
		now:      util.NowUTC,
	}
}

// Analyze runs exactly one request/parse/persist cycle for a submission.
// Transport and parse failures degrade to an empty prediction set rather than
// an error; persistence failures are logged and never alter the result.
func (s *service) Analyze(ctx context.Context, userID int64, req Request) (Response, error) {
	release, ok := s.progress.begin(userID)
	if !ok {
		return Response{}, apperrors.New("analysis_in_progress", "an analysis is already in progress")
	}
	defer release()

	resp := Response{
		Symptoms:        req.Symptoms,
		MatchedSymptoms: []string{},
		Predictions:     []Prediction{},
	}

	out, err := s.client.GenerateContent(ctx, s.buildGenerateRequest(req.Symptoms))
	if err != nil {
		s.logger.Error("symptom analysis request failed", "error", err, "user_id", userID)
		return resp, nil
	}
	if out.UsageMetadata != nil {
		resp.TokenUsage = &metrics.TokenUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		}
	}

	predictions, err := extractPredictions(out)
	if err != nil {
		s.logger.Error("symptom analysis response malformed", "error", err, "user_id", userID)
		return resp, nil
	}
	predictions = s.normalize(predictions, req.Symptoms)
	resp.Predictions = predictions
	resp.MatchedSymptoms = matchedSymptoms(predictions, req.Symptoms)

	if len(predictions) == 0 {
		return resp, nil
	}

	record := Record{
		ID:          uuid.NewString(),
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		Symptoms:    req.Symptoms,
		Predictions: predictions,
		Status:      StatusNeedsReview,
	}
	if err := s.repo.AppendAnalysis(ctx, userID, record); err != nil {
		s.logger.Error("failed to store analysis", "error", err, "user_id", userID)
		return resp, nil
	}
	resp.Saved = true
	return resp, nil
}

// Progress reports the cosmetic progress counter for the user.
func (s *service) Progress(_ context.Context, userID int64) Progress {
	return s.progress.snapshot(userID)
}

// History returns the caller's stored analysis records.
func (s *service) History(ctx context.Context, userID int64) ([]Record, error) {
	records, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap("history_error", "failed to load analysis history", err)
	}
	return records, nil
}

func (s *service) buildGenerateRequest(symptoms string) gemini.GenerateContentRequest {
	return gemini.GenerateContentRequest{
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: BuildPrompt(symptoms)}}},
		},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   ResponseSchema(),
			Temperature:      s.cfg.Temperature,
		},
	}
}

// extractPredictions navigates the fixed envelope path and decodes the
// embedded JSON. A missing candidate/content/part yields zero predictions
// without error; malformed JSON is the only error case.
func extractPredictions(out gemini.GenerateContentResponse) ([]Prediction, error) {
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}
	raw := out.Candidates[0].Content.Parts[0].Text
	var wire struct {
		Predictions []wirePrediction `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}
	predictions := make([]Prediction, 0, len(wire.Predictions))
	for _, p := range wire.Predictions {
		predictions = append(predictions, p.toPrediction())
	}
	return predictions, nil
}

// wirePrediction tolerates the numeric looseness of generated JSON, where
// severity may arrive as a non-integral number.
type wirePrediction struct {
	Disease         string   `json:"disease"`
	Confidence      float64  `json:"confidence"`
	Description     string   `json:"description"`
	Recovery        []string `json:"recovery"`
	MatchedSymptoms []string `json:"matchedSymptoms"`
	Severity        float64  `json:"severity"`
	Specialist      string   `json:"specialist"`
}

func (w wirePrediction) toPrediction() Prediction {
	return Prediction{
		Disease:         w.Disease,
		Confidence:      w.Confidence,
		Description:     w.Description,
		Recovery:        w.Recovery,
		MatchedSymptoms: w.MatchedSymptoms,
		Severity:        int(math.Round(w.Severity)),
		Specialist:      w.Specialist,
	}
}

// normalize enforces the prediction contract once, right after parsing, so
// downstream consumers can rely on fully-populated records: predictions are
// capped, severity is clamped into {1,2,3}, and recovery has a fixed length.
func (s *service) normalize(predictions []Prediction, symptoms string) []Prediction {
	if len(predictions) > s.cfg.MaxPredictions {
		predictions = predictions[:s.cfg.MaxPredictions]
	}
	for i := range predictions {
		p := &predictions[i]
		p.Disease = strings.TrimSpace(p.Disease)
		p.Specialist = strings.TrimSpace(p.Specialist)
		if p.Severity < SeverityMild {
			p.Severity = SeverityMild
		}
		if p.Severity > SeveritySevere {
			p.Severity = SeveritySevere
		}
		p.Recovery = normalizeSteps(p.Recovery, s.cfg.RecoverySteps)
		p.MatchedSymptoms = cleanTokens(p.MatchedSymptoms)
		if len(p.MatchedSymptoms) == 0 && strings.TrimSpace(symptoms) != "" {
			p.MatchedSymptoms = []string{symptoms}
		}
	}
	return predictions
}

func normalizeSteps(steps []string, want int) []string {
	out := cleanTokens(steps)
	if len(out) > want {
		return out[:want]
	}
	for len(out) < want {
		out = append(out, "Follow up with a medical professional")
	}
	return out
}

func cleanTokens(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// matchedSymptoms mirrors the display fallback: the first prediction's
// matched symptoms, or the raw input when absent.
func matchedSymptoms(predictions []Prediction, symptoms string) []string {
	if len(predictions) > 0 && len(predictions[0].MatchedSymptoms) > 0 {
		return predictions[0].MatchedSymptoms
	}
	if strings.TrimSpace(symptoms) == "" {
		return []string{}
	}
	return []string{symptoms}
}
