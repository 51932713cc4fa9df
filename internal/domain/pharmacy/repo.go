package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	Status    PrescriptionStatus
}

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error)

	// HasPendingPrescriptions reports whether the patient has anything left
	// to collect at the pharmacy counter.
	HasPendingPrescriptions(ctx context.Context, patientID uuid.UUID) (bool, error)
}
