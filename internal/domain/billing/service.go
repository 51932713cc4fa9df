package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sequencer hands out gap-free numbers per scope.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// CashierReconciler re-checks a patient's cashier queue entry once their
// balance clears. Satisfied by the queue service; wired after construction
// to avoid a package cycle.
type CashierReconciler interface {
	CheckAndCompleteCashier(ctx context.Context, patientID uuid.UUID) (int, error)
}

type Service struct {
	repo   Repository
	tx     TxRunner
	seq    Sequencer
	recon  CashierReconciler
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx TxRunner, seq Sequencer, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		seq:    seq,
		logger: logger,
		now:    time.Now,
	}
}

// SetReconciler attaches the cashier queue hook (may be left nil).
func (s *Service) SetReconciler(r CashierReconciler) { s.recon = r }

const invoiceScope = "invoice"

// FormatInvoiceNumber renders a sequence value as a display number.
func FormatInvoiceNumber(seq int64) string { return fmt.Sprintf("INV-%06d", seq) }

// CreateInvoiceRequest carries a new invoice and its line items.
type CreateInvoiceRequest struct {
	PatientID uuid.UUID     `json:"patient_id"`
	Status    InvoiceStatus `json:"status"`
	Notes     *string       `json:"notes,omitempty"`
	CreatedBy string        `json:"-"`
	Items     []LineItemInput
}

type LineItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateInvoice numbers and stores a new invoice with its line items. The
// total is computed from the items, never taken from the caller.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Status == "" {
		req.Status = InvoicePending
	}
	if req.Status != InvoiceDraft && req.Status != InvoicePending {
		return nil, fmt.Errorf("new invoices must be draft or pending, got %s", req.Status)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}

	total := decimal.Zero
	items := make([]*LineItem, 0, len(req.Items))
	for i, in := range req.Items {
		if in.Description == "" {
			return nil, fmt.Errorf("item %d: description is required", i)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive", i)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("item %d: unit price cannot be negative", i)
		}
		amount := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		items = append(items, &LineItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
		})
		total = total.Add(amount)
	}

	inv := &Invoice{
		PatientID: req.PatientID,
		Status:    req.Status,
		Total:     total,
		Paid:      decimal.Zero,
		Balance:   total,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		seq, err := s.seq.Next(ctx, invoiceScope)
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		inv.InvoiceNumber = FormatInvoiceNumber(seq)
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, li := range items {
			li.InvoiceID = inv.ID
			if err := s.repo.AddLineItem(ctx, li); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	inv.Items = items

	s.logger.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("patient_id", inv.PatientID.String()).
		Str("total", inv.Total.String()).
		Msg("invoice created")
	return inv, nil
}

// IssueInvoice moves a draft invoice to pending so it starts blocking the
// cashier queue.
func (s *Service) IssueInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceDraft {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDraft, inv.InvoiceNumber, inv.Status)
	}
	inv.Status = InvoicePending
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice voids an invoice. Paid invoices cannot be cancelled.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrInvoiceClosed, inv.InvoiceNumber)
		}
		inv.Status = InvoiceCancelled
		return s.repo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, inv.PatientID)
	return inv, nil
}

// PaymentRequest records a settlement against an invoice.
type PaymentRequest struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	Reference  *string         `json:"reference,omitempty"`
	ReceivedBy string          `json:"-"`
}

// RecordPayment applies a payment to an invoice atomically: the invoice's
// paid, balance and status move in the same transaction as the payment row.
// When the payment clears the patient's last pending bill, their cashier
// queue entry is completed via the reconciler.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*Payment, *Invoice, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, nil, fmt.Errorf("invalid payment method: %s", req.Method)
	}

	var (
		inv *Invoice
		pay *Payment
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.Pending() {
			return fmt.Errorf("%w: %s is %s", ErrInvoiceClosed, inv.InvoiceNumber, inv.Status)
		}
		if req.Amount.GreaterThan(inv.Balance) {
			return fmt.Errorf("%w: balance is %s", ErrOverpayment, inv.Balance)
		}

		inv.ApplyPayment(req.Amount)
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}

		pay = &Payment{
			InvoiceID:  inv.ID,
			Amount:     req.Amount,
			Method:     req.Method,
			Reference:  req.Reference,
			ReceivedBy: req.ReceivedBy,
			ReceivedAt: s.now().UTC(),
		}
		return s.repo.CreatePayment(ctx, pay)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("amount", req.Amount.String()).
		Str("status", string(inv.Status)).
		Msg("payment recorded")

	if inv.Status == InvoicePaid {
		s.reconcile(ctx, inv.PatientID)
	}
	return pay, inv, nil
}

// reconcile nudges the cashier queue after a balance change. Best effort:
// the payment stands even if the queue update fails.
func (s *Service) reconcile(ctx context.Context, patientID uuid.UUID) {
	if s.recon == nil {
		return
	}
	completed, err := s.recon.CheckAndCompleteCashier(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("cashier reconcile failed")
		return
	}
	if completed > 0 {
		s.logger.Info().Str("patient_id", patientID.String()).Int("completed", completed).Msg("cashier entry auto-completed")
	}
}

// HasPendingBills reports whether the patient has outstanding invoices.
// This is the billing gate the cashier queue consults.
func (s *Service) HasPendingBills(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return s.repo.HasPendingBills(ctx, patientID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid invoice status: %s", filter.Status)
	}
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.repo.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}
