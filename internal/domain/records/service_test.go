package records

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medimind/medimind-api/internal/domain/analysis"
)

type memoryRecordsRepo struct {
	documents   []PatientDocument
	severeCases map[string]SevereCase
	listErr     error
}

func newMemoryRecordsRepo(documents ...PatientDocument) *memoryRecordsRepo {
	return &memoryRecordsRepo{documents: documents, severeCases: make(map[string]SevereCase)}
}

func (m *memoryRecordsRepo) ListPatientDocuments(context.Context) ([]PatientDocument, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.documents, nil
}

func (m *memoryRecordsRepo) GetPatientDocument(_ context.Context, patientID int64) (PatientDocument, bool, error) {
	for _, doc := range m.documents {
		if doc.UserID == patientID {
			return doc, true, nil
		}
	}
	return PatientDocument{}, false, nil
}

func (m *memoryRecordsRepo) UpsertSevereCase(_ context.Context, severeCase SevereCase) error {
	m.severeCases[severeCase.RecordID] = severeCase
	return nil
}

func (m *memoryRecordsRepo) SevereCases(context.Context) ([]SevereCase, error) {
	cases := make([]SevereCase, 0, len(m.severeCases))
	for _, c := range m.severeCases {
		cases = append(cases, c)
	}
	return cases, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id string, ts time.Time, severity int, disease, status string) analysis.Record {
	return analysis.Record{
		ID:        id,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Symptoms:  "symptoms for " + id,
		Predictions: []analysis.Prediction{
			{Disease: disease, Severity: severity, Confidence: 80},
		},
		Status: status,
	}
}

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func fixtureDocuments() []PatientDocument {
	return []PatientDocument{
		{
			UserID: 1, FullName: "Alice Ray", Email: "alice@example.com",
			CreatedAt: baseTime.Add(-3 * 24 * time.Hour),
			Analyses: []analysis.Record{
				record("a1", baseTime.Add(1*time.Hour), 3, "Pneumonia", ""),
				record("a2", baseTime.Add(5*time.Hour), 1, "Common Cold", analysis.StatusReviewed),
				record("a3", baseTime.Add(3*time.Hour), 2, "Bronchitis", ""),
			},
		},
		{
			UserID: 2, FullName: "Bob Tan", Email: "bob@example.com",
			CreatedAt: baseTime.Add(-10 * 24 * time.Hour),
			Analyses: []analysis.Record{
				record("b1", baseTime.Add(4*time.Hour), 3, "Sepsis", ""),
			},
		},
		{UserID: 3, FullName: "Cara Ives", Email: "cara@example.com",
			CreatedAt: baseTime.Add(-30 * 24 * time.Hour)},
	}
}

func TestStats(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())
	svc.(*service).now = func() time.Time { return baseTime }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalPatients)
	require.Equal(t, 1, stats.NewPatients, "Alice registered three days ago")
	require.Equal(t, 1, stats.PrevNewPatients, "Bob registered in the week before")
	require.Equal(t, 4, stats.TotalAnalyses)
	require.Equal(t, 2, stats.SevereCases)
	require.Equal(t, 3, stats.PendingReview, "records without a status count as pending")
	require.Equal(t, 2, stats.ActivePatients)
}

func TestRecentTakesNewestTwoPerPatient(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())

	feed, err := svc.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	require.Len(t, feed, 3, "two rows from Alice, one from Bob")

	// Default order is time descending.
	require.Equal(t, "a2", feed[0].RecordID)
	require.Equal(t, "b1", feed[1].RecordID)
	require.Equal(t, "a3", feed[2].RecordID)

	// Alice's oldest record fell out of the per-patient window.
	for _, row := range feed {
		require.NotEqual(t, "a1", row.RecordID)
	}
}

func TestRecentSortBySeverityAndPatient(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())

	feed, err := svc.Recent(context.Background(), RecentQuery{SortBy: SortBySeverity})
	require.NoError(t, err)
	require.Equal(t, "b1", feed[0].RecordID)
	require.Equal(t, 3, feed[0].Severity)

	feed, err = svc.Recent(context.Background(), RecentQuery{SortBy: SortByPatient})
	require.NoError(t, err)
	require.Equal(t, "Alice Ray", feed[0].PatientName)
	require.Equal(t, "a2", feed[0].RecordID, "newest first within a patient")
}

func TestRecentFilters(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())

	feed, err := svc.Recent(context.Background(), RecentQuery{Severity: "severe"})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "b1", feed[0].RecordID)
	require.Equal(t, "Severe", feed[0].SeverityLabel)

	feed, err = svc.Recent(context.Background(), RecentQuery{Status: analysis.StatusReviewed})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "a2", feed[0].RecordID)
}

func TestRecentCapsFeedAtTen(t *testing.T) {
	documents := make([]PatientDocument, 0, 8)
	for i := 0; i < 8; i++ {
		documents = append(documents, PatientDocument{
			UserID:   int64(i + 1),
			FullName: fmt.Sprintf("Patient %d", i+1),
			Analyses: []analysis.Record{
				record(fmt.Sprintf("r%d", i), baseTime.Add(time.Duration(i)*time.Minute), 1, "Cold", ""),
				record(fmt.Sprintf("s%d", i), baseTime.Add(time.Duration(i)*time.Minute+30*time.Second), 1, "Cold", ""),
			},
		})
	}
	svc := NewService(newMemoryRecordsRepo(documents...), testLogger())

	feed, err := svc.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	require.Len(t, feed, 10)
}

func TestRecentMaterializesSevereCases(t *testing.T) {
	repo := newMemoryRecordsRepo(fixtureDocuments()...)
	svc := NewService(repo, testLogger())

	_, err := svc.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	require.Contains(t, repo.severeCases, "b1")
	require.Equal(t, "Sepsis", repo.severeCases["b1"].Disease)
	require.Contains(t, repo.severeCases, "a1", "severe records older than the feed window are still materialized")

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	cases, err := svc.SevereCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, stats.SevereCases)
}

func TestMaterializedSevereSetMatchesRecomputedCount(t *testing.T) {
	// A severe analysis buried under newer mild ones must still show up in
	// the materialized list.
	repo := newMemoryRecordsRepo(PatientDocument{
		UserID: 5, FullName: "Evan Cole", Email: "evan@example.com",
		Analyses: []analysis.Record{
			record("e1", baseTime.Add(1*time.Hour), 3, "Meningitis", ""),
			record("e2", baseTime.Add(2*time.Hour), 1, "Common Cold", ""),
			record("e3", baseTime.Add(3*time.Hour), 1, "Allergies", ""),
		},
	})
	svc := NewService(repo, testLogger())

	feed, err := svc.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	for _, row := range feed {
		require.NotEqual(t, "e1", row.RecordID, "severe record is outside the feed window")
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	cases, err := svc.SevereCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, stats.SevereCases)
	require.Equal(t, "e1", cases[0].RecordID)

	// The roster load materializes as well.
	repo.severeCases = map[string]SevereCase{}
	_, err = svc.Patients(context.Background(), "")
	require.NoError(t, err)
	require.Contains(t, repo.severeCases, "e1")
}

func TestSevereReadsLeadingPrediction(t *testing.T) {
	// The model ranks predictions; a severe condition further down the list
	// does not make the record a severe case.
	mixed := record("m1", baseTime.Add(time.Hour), 1, "Common Cold", "")
	mixed.Predictions = append(mixed.Predictions, analysis.Prediction{Disease: "Sepsis", Severity: 3, Confidence: 40})
	repo := newMemoryRecordsRepo(PatientDocument{
		UserID: 7, FullName: "Dana Wu", Email: "dana@example.com",
		Analyses: []analysis.Record{mixed},
	})
	svc := NewService(repo, testLogger())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.SevereCases)

	feed, err := svc.Recent(context.Background(), RecentQuery{})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, 1, feed[0].Severity)
	require.Equal(t, "Common Cold", feed[0].TopDisease)
	require.Empty(t, repo.severeCases)
}

func TestPatientsRollupsAndSearch(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())

	patients, err := svc.Patients(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, patients, 3)

	var alice PatientSummary
	for _, p := range patients {
		if p.PatientID == 1 {
			alice = p
		}
	}
	require.Equal(t, 3, alice.AnalysisCount)
	require.Equal(t, 1, alice.SevereCases)
	require.Equal(t, baseTime.Add(5*time.Hour).Format(time.RFC3339), alice.LastAnalysis)

	patients, err = svc.Patients(context.Background(), "bob@")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	require.Equal(t, "Bob Tan", patients[0].FullName)

	// Patient ids are searchable too.
	patients, err = svc.Patients(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	require.Equal(t, int64(2), patients[0].PatientID)
}

func TestPatientDetail(t *testing.T) {
	svc := NewService(newMemoryRecordsRepo(fixtureDocuments()...), testLogger())

	detail, err := svc.Patient(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Alice Ray", detail.FullName)
	require.Len(t, detail.Analyses, 3)
	require.Equal(t, "a2", detail.Analyses[0].ID, "newest first")

	_, err = svc.Patient(context.Background(), 99)
	require.Error(t, err)
}
