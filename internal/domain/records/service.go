package records

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	apperrors "github.com/medimind/medimind-api/pkg/errors"
	"github.com/medimind/medimind-api/pkg/util"
)

const (
	recentPerPatient = 2
	recentFeedLimit  = 10
)

// Service exposes the doctor-facing patient records surface.
type Service interface {
	Stats(ctx context.Context) (Stats, error)
	Recent(ctx context.Context, query RecentQuery) ([]RecentAnalysis, error)
	Patients(ctx context.Context, search string) ([]PatientSummary, error)
	Patient(ctx context.Context, patientID int64) (PatientDetail, error)
	SevereCases(ctx context.Context) ([]SevereCase, error)
}

type service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger.With("component", "records.service"),
		now:    util.NowUTC,
	}
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	documents, err := s.repo.ListPatientDocuments(ctx)
	if err != nil {
		return Stats{}, apperrors.Wrap("records_error", "failed to load patient documents", err)
	}
	now := s.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	stats := Stats{TotalPatients: len(documents)}
	for _, doc := range documents {
		if doc.CreatedAt.After(weekAgo) {
			stats.NewPatients++
		} else if doc.CreatedAt.After(twoWeeksAgo) {
			stats.PrevNewPatients++
		}
		stats.TotalAnalyses += len(doc.Analyses)
		if len(doc.Analyses) > 0 {
			stats.ActivePatients++
		}
		for _, record := range doc.Analyses {
			if record.IsSevere() {
				stats.SevereCases++
			}
			if record.TriageStatus() == analysis.StatusNeedsReview {
				stats.PendingReview++
			}
		}
	}
	return stats, nil
}

// Recent builds the dashboard feed: the newest analyses per patient, merged,
// filtered, ordered, and capped. Every severe record in each patient's full
// history is materialized on the way through, so the severe-case list always
// matches a direct recomputation over the histories.
func (s *service) Recent(ctx context.Context, query RecentQuery) ([]RecentAnalysis, error) {
	documents, err := s.repo.ListPatientDocuments(ctx)
	if err != nil {
		return nil, apperrors.Wrap("records_error", "failed to load patient documents", err)
	}

	feed := make([]RecentAnalysis, 0, len(documents)*recentPerPatient)
	for _, doc := range documents {
		s.materializeSevereCases(ctx, doc)
		for _, record := range newestRecords(doc.Analyses, recentPerPatient) {
			feed = append(feed, toRecentAnalysis(doc, record))
		}
	}

	// The feed window is fixed by recency; filters and sort keys rearrange
	// the window rather than widen it.
	sortFeed(feed, SortByTime)
	if len(feed) > recentFeedLimit {
		feed = feed[:recentFeedLimit]
	}
	feed = filterFeed(feed, query)
	sortFeed(feed, query.SortBy)
	return feed, nil
}

func (s *service) Patients(ctx context.Context, search string) ([]PatientSummary, error) {
	documents, err := s.repo.ListPatientDocuments(ctx)
	if err != nil {
		return nil, apperrors.Wrap("records_error", "failed to load patient documents", err)
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	summaries := make([]PatientSummary, 0, len(documents))
	for _, doc := range documents {
		s.materializeSevereCases(ctx, doc)
		if needle != "" &&
			!strings.Contains(strings.ToLower(doc.FullName), needle) &&
			!strings.Contains(strings.ToLower(doc.Email), needle) &&
			!strings.Contains(strconv.FormatInt(doc.UserID, 10), needle) {
			continue
		}
		summaries = append(summaries, toSummary(doc))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastAnalysis > summaries[j].LastAnalysis
	})
	return summaries, nil
}

func (s *service) Patient(ctx context.Context, patientID int64) (PatientDetail, error) {
	doc, found, err := s.repo.GetPatientDocument(ctx, patientID)
	if err != nil {
		return PatientDetail{}, apperrors.Wrap("records_error", "failed to load patient", err)
	}
	if !found {
		return PatientDetail{}, apperrors.New("patient_not_found", "patient not found")
	}
	analyses := append([]analysis.Record(nil), doc.Analyses...)
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Time().After(analyses[j].Time())
	})
	return PatientDetail{
		PatientID: doc.UserID,
		FullName:  doc.FullName,
		Email:     doc.Email,
		PhotoURL:  doc.PhotoURL,
		Analyses:  analyses,
	}, nil
}

func (s *service) SevereCases(ctx context.Context) ([]SevereCase, error) {
	cases, err := s.repo.SevereCases(ctx)
	if err != nil {
		return nil, apperrors.Wrap("records_error", "failed to load severe cases", err)
	}
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].Timestamp > cases[j].Timestamp
	})
	return cases, nil
}

// materializeSevereCases merge-writes a severe row for every severe record in
// the patient's history, keeping the materialized set equal to what a direct
// filter over the histories would yield.
func (s *service) materializeSevereCases(ctx context.Context, doc PatientDocument) {
	for _, record := range doc.Analyses {
		if record.IsSevere() {
			s.materializeSevereCase(ctx, doc, record)
		}
	}
}

// materializeSevereCase merge-writes one severe row. Failures are logged and
// never surface into the dashboard response.
func (s *service) materializeSevereCase(ctx context.Context, doc PatientDocument, record analysis.Record) {
	severeCase := SevereCase{
		RecordID:    record.ID,
		PatientID:   doc.UserID,
		PatientName: doc.FullName,
		Disease:     topDisease(record),
		Severity:    recordSeverity(record),
		Symptoms:    record.Symptoms,
		Status:      record.TriageStatus(),
		Timestamp:   record.Timestamp,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.repo.UpsertSevereCase(ctx, severeCase); err != nil {
		s.logger.Warn("failed to materialize severe case", "error", err, "record_id", record.ID)
	}
}

// newestRecords returns up to n records, newest first.
func newestRecords(records []analysis.Record, n int) []analysis.Record {
	sorted := append([]analysis.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time().After(sorted[j].Time())
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func toRecentAnalysis(doc PatientDocument, record analysis.Record) RecentAnalysis {
	severity := recordSeverity(record)
	return RecentAnalysis{
		RecordID:      record.ID,
		PatientID:     doc.UserID,
		PatientName:   doc.FullName,
		Symptoms:      record.Symptoms,
		TopDisease:    topDisease(record),
		Severity:      severity,
		SeverityLabel: analysis.SeverityLabel(severity),
		Status:        record.TriageStatus(),
		Timestamp:     record.Timestamp,
	}
}

func toSummary(doc PatientDocument) PatientSummary {
	summary := PatientSummary{
		PatientID:     doc.UserID,
		FullName:      doc.FullName,
		Email:         doc.Email,
		PhotoURL:      doc.PhotoURL,
		AnalysisCount: len(doc.Analyses),
	}
	for _, record := range doc.Analyses {
		if record.IsSevere() {
			summary.SevereCases++
		}
		if record.Timestamp > summary.LastAnalysis {
			summary.LastAnalysis = record.Timestamp
		}
	}
	return summary
}

// recordSeverity is the severity of the leading prediction. Predictions keep
// the model's ranking, so the first entry is the record's headline condition
// and the severe-case predicate reads it, never a recomputed maximum.
func recordSeverity(record analysis.Record) int {
	if len(record.Predictions) == 0 {
		return 0
	}
	return record.Predictions[0].Severity
}

// topDisease is the disease of the leading prediction.
func topDisease(record analysis.Record) string {
	if len(record.Predictions) == 0 {
		return ""
	}
	return record.Predictions[0].Disease
}

func filterFeed(feed []RecentAnalysis, query RecentQuery) []RecentAnalysis {
	severity := strings.TrimSpace(query.Severity)
	status := strings.TrimSpace(query.Status)
	if severity == "" && status == "" {
		return feed
	}
	filtered := feed[:0]
	for _, row := range feed {
		if severity != "" && !strings.EqualFold(row.SeverityLabel, severity) {
			continue
		}
		if status != "" && !strings.EqualFold(row.Status, status) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

func sortFeed(feed []RecentAnalysis, sortBy string) {
	switch sortBy {
	case SortBySeverity:
		sort.SliceStable(feed, func(i, j int) bool {
			if feed[i].Severity != feed[j].Severity {
				return feed[i].Severity > feed[j].Severity
			}
			return feed[i].Timestamp > feed[j].Timestamp
		})
	case SortByPatient:
		sort.SliceStable(feed, func(i, j int) bool {
			a, b := strings.ToLower(feed[i].PatientName), strings.ToLower(feed[j].PatientName)
			if a != b {
				return a < b
			}
			return feed[i].Timestamp > feed[j].Timestamp
		})
	default:
		sort.SliceStable(feed, func(i, j int) bool {
			return feed[i].Timestamp > feed[j].Timestamp
		})
	}
}
