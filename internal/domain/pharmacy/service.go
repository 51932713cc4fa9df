package pharmacy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StockIssuer deducts dispensed stock from the inventory ledger. Satisfied
// by the inventory service.
type StockIssuer interface {
	IssueStock(ctx context.Context, itemID uuid.UUID, quantity int, reference string, performedBy string) error
}

type Service struct {
	repo   Repository
	tx     TxRunner
	stock  StockIssuer
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx TxRunner, stock StockIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, stock: stock, logger: logger, now: time.Now}
}

// CreateRequest carries a new medication order.
type CreateRequest struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     *uuid.UUID `json:"doctor_id,omitempty"`
	Medication   string     `json:"medication"`
	Dosage       string     `json:"dosage"`
	Quantity     int        `json:"quantity"`
	Instructions *string    `json:"instructions,omitempty"`
	ItemID       *uuid.UUID `json:"item_id,omitempty"`
	CreatedBy    string     `json:"-"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Prescription, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Medication == "" {
		return nil, fmt.Errorf("medication is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	p := &Prescription{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Medication:   req.Medication,
		Dosage:       req.Dosage,
		Quantity:     req.Quantity,
		Instructions: req.Instructions,
		Status:       StatusPending,
		ItemID:       req.ItemID,
		CreatedBy:    req.CreatedBy,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Dispense marks a prescription filled and, when it is linked to a stock
// item, deducts the dispensed quantity from inventory in the same
// transaction. A prescription with no linked item is dispensed from stock
// tracked outside the system.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, dispensedBy string) (*Prescription, error) {
	var p *Prescription
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrAlreadySettled, p.Status)
		}

		now := s.now().UTC()
		p.Status = StatusDispensed
		p.DispensedBy = &dispensedBy
		p.DispensedAt = &now
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		if p.ItemID != nil && s.stock != nil {
			ref := fmt.Sprintf("prescription:%s", p.ID)
			if err := s.stock.IssueStock(ctx, *p.ItemID, p.Quantity, ref, dispensedBy); err != nil {
				return fmt.Errorf("issue stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("medication", p.Medication).
		Int("quantity", p.Quantity).
		Msg("prescription dispensed")
	return p, nil
}

// Cancel voids a pending prescription.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, p.Status)
	}
	p.Status = StatusCancelled
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// HasPendingPrescriptions is the gate the pharmacy queue consults.
func (s *Service) HasPendingPrescriptions(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return s.repo.HasPendingPrescriptions(ctx, patientID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid prescription status: %s", filter.Status)
	}
	return s.repo.List(ctx, filter, limit, offset)
}
