package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hmis/hmis/internal/platform/events"
)

// BillingGate answers whether a patient has an unpaid, non-draft invoice.
// Always computed fresh against the store; never cached.
type BillingGate interface {
	HasPendingBills(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// PrescriptionGate answers whether a patient has a pending prescription.
type PrescriptionGate interface {
	HasPendingPrescriptions(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// PatientDirectory supplies patient display fields for joined responses.
type PatientDirectory interface {
	DisplayName(ctx context.Context, patientID uuid.UUID) (string, error)
}

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sequencer hands out per-scope monotonically increasing counters.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// Service owns the queue entry lifecycle and the service-point-to-service-
// point chaining.
type Service struct {
	repo     Repository
	billing  BillingGate
	pharmacy PrescriptionGate
	patients PatientDirectory
	tx       TxRunner
	seq      Sequencer
	pub      events.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, billing BillingGate, pharmacy PrescriptionGate, patients PatientDirectory,
	tx TxRunner, seq Sequencer, pub events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		billing:  billing,
		pharmacy: pharmacy,
		patients: patients,
		tx:       tx,
		seq:      seq,
		pub:      pub,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest carries the fields for a new queue entry.
type CreateRequest struct {
	PatientID            uuid.UUID    `json:"patient_id"`
	ServicePoint         ServicePoint `json:"service_point"`
	Priority             Priority     `json:"priority"`
	DoctorID             *uuid.UUID   `json:"doctor_id,omitempty"`
	EstimatedWaitMinutes *int         `json:"estimated_wait_minutes,omitempty"`
	Notes                *string      `json:"notes,omitempty"`
	CreatedBy            string       `json:"-"`
}

// Create registers a patient at a service point. Cashier entries require a
// pending bill, pharmacy entries a pending prescription. If the patient
// already has an active entry at the service point, that entry is returned
// with its Duplicate flag set and no row is inserted.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Entry, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if !req.ServicePoint.Valid() {
		return nil, fmt.Errorf("invalid service point: %s", req.ServicePoint)
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, fmt.Errorf("invalid priority: %s", req.Priority)
	}

	existing, err := s.repo.FindActive(ctx, req.PatientID, req.ServicePoint)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return nil, err
	}
	if existing != nil {
		existing.Duplicate = true
		return existing, nil
	}

	if err := s.checkCreateGate(ctx, req.PatientID, req.ServicePoint); err != nil {
		return nil, err
	}

	var entry *Entry
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.insertEntry(ctx, req)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeQueueEntryCreated, entry)
	return entry, nil
}

// checkCreateGate enforces the per-service-point entry preconditions.
func (s *Service) checkCreateGate(ctx context.Context, patientID uuid.UUID, sp ServicePoint) error {
	switch sp {
	case Cashier:
		pending, err := s.billing.HasPendingBills(ctx, patientID)
		if err != nil {
			return fmt.Errorf("check pending bills: %w", err)
		}
		if !pending {
			return ErrNoPendingBills
		}
	case Pharmacy:
		pending, err := s.pharmacy.HasPendingPrescriptions(ctx, patientID)
		if err != nil {
			return fmt.Errorf("check pending prescriptions: %w", err)
		}
		if !pending {
			return ErrNoPendingPrescriptions
		}
	}
	return nil
}

// insertEntry generates the ticket number and inserts the row. Must run
// inside a transaction so the ticket counter commits with the insert.
func (s *Service) insertEntry(ctx context.Context, req CreateRequest) (*Entry, error) {
	now := s.now()
	seq, err := s.seq.Next(ctx, ticketScope(req.ServicePoint, now))
	if err != nil {
		return nil, err
	}

	e := &Entry{
		PatientID:            req.PatientID,
		DoctorID:             req.DoctorID,
		TicketNumber:         FormatTicket(req.ServicePoint, seq),
		ServicePoint:         req.ServicePoint,
		Priority:             req.Priority,
		Status:               StatusWaiting,
		ArrivalTime:          now,
		EstimatedWaitMinutes: req.EstimatedWaitMinutes,
		Notes:                req.Notes,
		CreatedBy:            req.CreatedBy,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ticketScope scopes the ticket counter to one service point and calendar day.
func ticketScope(sp ServicePoint, day time.Time) string {
	return fmt.Sprintf("queue:%s:%s", sp, day.Format("2006-01-02"))
}

// UpdateStatus is the single authoritative transition primitive. It validates
// the state machine, stamps the timestamp matching the new status, and for
// cashier entries re-checks the billing gate before allowing completion.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Entry, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("invalid status: %s", newStatus)
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status.Terminal() {
		return nil, ErrTerminalEntry
	}
	if !e.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, newStatus)
	}

	if e.ServicePoint == Cashier && newStatus == StatusCompleted {
		pending, err := s.billing.HasPendingBills(ctx, e.PatientID)
		if err != nil {
			return nil, fmt.Errorf("check pending bills: %w", err)
		}
		if pending {
			return nil, ErrPendingBills
		}
	}

	s.applyStatus(e, newStatus)
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	switch newStatus {
	case StatusCalled:
		s.publish(ctx, events.TypeQueueEntryCalled, e)
	case StatusCompleted:
		s.publish(ctx, events.TypeQueueEntryCompleted, e)
	}
	return e, nil
}

// applyStatus mutates status and stamps exactly the timestamp field matching
// the new status. Timestamps are set once and never cleared.
func (s *Service) applyStatus(e *Entry, newStatus Status) {
	now := s.now()
	switch newStatus {
	case StatusCalled:
		e.CalledTime = &now
	case StatusServing:
		e.StartTime = &now
	case StatusCompleted, StatusCancelled:
		e.EndTime = &now
	}
	e.Status = newStatus
}

// Archive moves a terminal entry to the history table with computed duration
// metrics. Cashier entries are re-checked against the billing gate. History
// insert and live delete happen in one transaction.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*HistoryEntry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.Terminal() {
		return nil, ErrNotTerminal
	}

	if e.ServicePoint == Cashier {
		pending, err := s.billing.HasPendingBills(ctx, e.PatientID)
		if err != nil {
			return nil, fmt.Errorf("check pending bills: %w", err)
		}
		if pending {
			return nil, ErrPendingBills
		}
	}

	h := e.toHistory(s.now())
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertHistory(ctx, h); err != nil {
			return err
		}
		return s.repo.Delete(ctx, e.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeQueueEntryArchived, e)
	return h, nil
}

// BatchArchiveCompleted archives every terminal entry. The billing re-check
// is skipped: entries were already gated when they transitioned to completed.
// The whole batch commits atomically.
func (s *Service) BatchArchiveCompleted(ctx context.Context) (int, error) {
	entries, err := s.repo.ListTerminal(ctx)
	if err != nil {
		return 0, err
	}

	archived := 0
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, e := range entries {
			h := e.toHistory(s.now())
			if err := s.repo.InsertHistory(ctx, h); err != nil {
				return err
			}
			if err := s.repo.Delete(ctx, e.ID); err != nil {
				return err
			}
			archived++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}

// ChainRequest describes one workflow step: complete the closing entry and
// open the next one at the destination service point.
type ChainRequest struct {
	From           ServicePoint `json:"from"`
	To             ServicePoint `json:"to"`
	PatientID      uuid.UUID    `json:"patient_id"`
	ClosingQueueID *uuid.UUID   `json:"closing_queue_id,omitempty"`
	Priority       Priority     `json:"priority"`
	DoctorID       *uuid.UUID   `json:"doctor_id,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
	CreatedBy      string       `json:"-"`
}

// ChainResult is the new entry joined with patient display fields.
type ChainResult struct {
	Entry       *Entry `json:"entry"`
	PatientName string `json:"patient_name,omitempty"`
}

// ChainTransition closes one queue entry and opens the next as a single
// atomic step. The closing entry is completed without re-validation (its
// precondition held when it was created) and the new entry skips the
// duplicate and precondition gates: the chain is the trusted source.
func (s *Service) ChainTransition(ctx context.Context, req ChainRequest) (*ChainResult, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if !req.To.Valid() {
		return nil, fmt.Errorf("invalid destination service point: %s", req.To)
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return nil, fmt.Errorf("invalid priority: %s", req.Priority)
	}

	var entry *Entry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if req.ClosingQueueID != nil {
			closing, err := s.repo.GetByID(ctx, *req.ClosingQueueID)
			if err != nil {
				return err
			}
			if closing.Status.Terminal() {
				return ErrTerminalEntry
			}
			s.applyStatus(closing, StatusCompleted)
			if err := s.repo.Update(ctx, closing); err != nil {
				return err
			}
		}

		e, err := s.insertEntry(ctx, CreateRequest{
			PatientID:    req.PatientID,
			ServicePoint: req.To,
			Priority:     req.Priority,
			DoctorID:     req.DoctorID,
			Notes:        req.Notes,
			CreatedBy:    req.CreatedBy,
		})
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeQueueEntryCreated, entry)

	result := &ChainResult{Entry: entry}
	if name, err := s.patients.DisplayName(ctx, req.PatientID); err == nil {
		result.PatientName = name
	}
	return result, nil
}

// CleanupStale re-evaluates the entry-creation precondition for every active
// entry at the cashier or pharmacy. Entries whose precondition no longer
// holds are cancelled with an audit note, not deleted. Returns the counts of
// removed and kept entries.
func (s *Service) CleanupStale(ctx context.Context, sp ServicePoint) (removed, kept int, err error) {
	if sp != Cashier && sp != Pharmacy {
		return 0, 0, fmt.Errorf("cleanup supports cashier and pharmacy, got %s", sp)
	}

	entries, err := s.repo.ListActive(ctx, sp)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range entries {
		var stillHolds bool
		switch sp {
		case Cashier:
			stillHolds, err = s.billing.HasPendingBills(ctx, e.PatientID)
		case Pharmacy:
			stillHolds, err = s.pharmacy.HasPendingPrescriptions(ctx, e.PatientID)
		}
		if err != nil {
			return removed, kept, err
		}

		if stillHolds {
			kept++
			continue
		}

		s.applyStatus(e, StatusCancelled)
		e.Notes = appendNote(e.Notes, fmt.Sprintf("auto-cancelled: no longer has a pending %s item", sp))
		if err := s.repo.Update(ctx, e); err != nil {
			return removed, kept, err
		}
		removed++
	}

	s.logger.Info().
		Str("service_point", string(sp)).
		Int("removed", removed).
		Int("kept", kept).
		Msg("stale queue cleanup")
	return removed, kept, nil
}

// TimeSummary computes live durations for an entry, substituting "now" for
// missing endpoints while the entry is still in progress.
func (s *Service) TimeSummary(ctx context.Context, id uuid.UUID) (*TimeSummary, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ts := e.TimeSummaryAt(s.now())
	return &ts, nil
}

// CheckAndCompleteCashier is the reconciliation hook run after a payment is
// recorded out-of-band. If the patient no longer has pending bills, every
// active cashier entry for that patient is transitioned to completed.
// Returns the number of entries completed.
func (s *Service) CheckAndCompleteCashier(ctx context.Context, patientID uuid.UUID) (int, error) {
	pending, err := s.billing.HasPendingBills(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("check pending bills: %w", err)
	}
	if pending {
		return 0, nil
	}

	entries, err := s.repo.ListActiveByPatient(ctx, patientID, Cashier)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, e := range entries {
		s.applyStatus(e, StatusCompleted)
		if err := s.repo.Update(ctx, e); err != nil {
			return completed, err
		}
		s.publish(ctx, events.TypeQueueEntryCompleted, e)
		completed++
	}
	return completed, nil
}

// Delete removes a non-terminal entry outright. Terminal entries must go
// through Archive so their metrics are preserved.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.Status.Terminal() {
		return ErrTerminalEntry
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) ListHistory(ctx context.Context, sp ServicePoint, limit, offset int) ([]*HistoryEntry, int, error) {
	return s.repo.ListHistory(ctx, sp, limit, offset)
}

// publish emits a queue event; failures are logged, never propagated.
func (s *Service) publish(ctx context.Context, eventType string, e *Entry) {
	evt := events.NewEvent(eventType, map[string]string{
		"queue_id":      e.ID.String(),
		"patient_id":    e.PatientID.String(),
		"service_point": string(e.ServicePoint),
		"ticket_number": e.TicketNumber,
		"status":        string(e.Status),
	})
	if err := s.pub.Publish(ctx, events.ChannelQueue, evt); err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("queue event publish failed")
	}
}

func appendNote(notes *string, extra string) *string {
	if notes == nil || *notes == "" {
		return &extra
	}
	combined := *notes + "; " + extra
	return &combined
}
