package records

import "context"

// Repository reads patient documents and maintains the severe-case rows.
type Repository interface {
	ListPatientDocuments(ctx context.Context) ([]PatientDocument, error)
	GetPatientDocument(ctx context.Context, patientID int64) (PatientDocument, bool, error)
	UpsertSevereCase(ctx context.Context, severeCase SevereCase) error
	SevereCases(ctx context.Context) ([]SevereCase, error)
}
