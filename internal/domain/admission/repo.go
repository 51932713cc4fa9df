package admission

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	Status    AdmissionStatus
	CareLevel CareLevel
}

type Repository interface {
	CreateWard(ctx context.Context, w *Ward) error
	GetWard(ctx context.Context, id uuid.UUID) (*Ward, error)
	ListWards(ctx context.Context) ([]*Ward, error)

	CreateBed(ctx context.Context, b *Bed) error
	GetBed(ctx context.Context, id uuid.UUID) (*Bed, error)
	ListBeds(ctx context.Context, wardID uuid.UUID, status BedStatus) ([]*Bed, error)
	SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error

	// OccupyBed conditionally moves an available bed to occupied. It returns
	// ErrBedUnavailable when the bed exists but is not available, so two
	// concurrent admissions can never share a bed.
	OccupyBed(ctx context.Context, id uuid.UUID) error
	// FreeBed moves an occupied bed back to available. Freeing a bed that
	// is already available is a no-op; a missing bed is ErrBedNotFound.
	FreeBed(ctx context.Context, id uuid.UUID) error

	CreateAdmission(ctx context.Context, a *Admission) error
	GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error)
	FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error)
	UpdateAdmission(ctx context.Context, a *Admission) error
	ListAdmissions(ctx context.Context, filter ListFilter, limit, offset int) ([]*Admission, int, error)

	ListOccupancy(ctx context.Context) ([]*Occupancy, error)
}
