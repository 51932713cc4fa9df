package billing

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	PatientID uuid.UUID
	Status    InvoiceStatus
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error)

	AddLineItem(ctx context.Context, li *LineItem) error
	GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error)

	CreatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)

	// HasPendingBills reports whether the patient has any invoice that is
	// pending or partially paid with a positive balance.
	HasPendingBills(ctx context.Context, patientID uuid.UUID) (bool, error)
}
