package queue

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// FindActive returns the patient's active (waiting/called/serving) entry
	// at the service point, or ErrEntryNotFound when there is none.
	FindActive(ctx context.Context, patientID uuid.UUID, sp ServicePoint) (*Entry, error)
	// ListActiveByPatient returns all of the patient's active entries at the
	// service point, oldest first. Chained transitions can leave more than one.
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID, sp ServicePoint) ([]*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error)
	ListActive(ctx context.Context, sp ServicePoint) ([]*Entry, error)
	ListTerminal(ctx context.Context) ([]*Entry, error)

	InsertHistory(ctx context.Context, h *HistoryEntry) error
	GetHistoryByQueueID(ctx context.Context, queueID uuid.UUID) (*HistoryEntry, error)
	ListHistory(ctx context.Context, sp ServicePoint, limit, offset int) ([]*HistoryEntry, int, error)
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	ServicePoint ServicePoint
	Status       Status
	PatientID    uuid.UUID
}
