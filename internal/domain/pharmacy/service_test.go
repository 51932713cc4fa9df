package pharmacy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	prescriptions map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{prescriptions: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return ErrPrescriptionNotFound
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, _, _ int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.prescriptions {
		if filter.PatientID != uuid.Nil && p.PatientID != filter.PatientID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) HasPendingPrescriptions(_ context.Context, patientID uuid.UUID) (bool, error) {
	for _, p := range m.prescriptions {
		if p.PatientID == patientID && p.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type issueCall struct {
	itemID    uuid.UUID
	quantity  int
	reference string
}

type mockStock struct {
	calls []issueCall
	err   error
}

func (m *mockStock) IssueStock(_ context.Context, itemID uuid.UUID, quantity int, reference, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, issueCall{itemID: itemID, quantity: quantity, reference: reference})
	return nil
}

func newTestService() (*Service, *mockRepo, *mockStock) {
	repo := newMockRepo()
	stock := &mockStock{}
	svc := NewService(repo, passTx{}, stock, zerolog.Nop())
	return svc, repo, stock
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{Medication: "Amoxicillin", Quantity: 10}); err == nil {
		t.Error("expected error for missing patient id")
	}
	if _, err := svc.Create(ctx, CreateRequest{PatientID: uuid.New(), Quantity: 10}); err == nil {
		t.Error("expected error for missing medication")
	}
	if _, err := svc.Create(ctx, CreateRequest{PatientID: uuid.New(), Medication: "Amoxicillin", Quantity: 0}); err == nil {
		t.Error("expected error for non-positive quantity")
	}
}

func TestCreate_StartsPending(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Create(context.Background(), CreateRequest{
		PatientID:  uuid.New(),
		Medication: "Paracetamol 500mg",
		Dosage:     "1x3 daily",
		Quantity:   15,
		CreatedBy:  "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusPending {
		t.Errorf("status = %s, want pending", p.Status)
	}
}

func TestDispense_DeductsLinkedStock(t *testing.T) {
	svc, _, stock := newTestService()
	ctx := context.Background()
	itemID := uuid.New()

	p, err := svc.Create(ctx, CreateRequest{
		PatientID:  uuid.New(),
		Medication: "Amoxicillin 250mg",
		Quantity:   21,
		ItemID:     &itemID,
		CreatedBy:  "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err = svc.Dispense(ctx, p.ID, "pharm1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusDispensed {
		t.Errorf("status = %s, want dispensed", p.Status)
	}
	if p.DispensedBy == nil || *p.DispensedBy != "pharm1" {
		t.Error("dispensed_by not stamped")
	}
	if p.DispensedAt == nil {
		t.Error("dispensed_at not stamped")
	}
	if len(stock.calls) != 1 {
		t.Fatalf("expected 1 stock issue, got %d", len(stock.calls))
	}
	if stock.calls[0].itemID != itemID || stock.calls[0].quantity != 21 {
		t.Error("stock issue should match the prescription's item and quantity")
	}
	if stock.calls[0].reference != "prescription:"+p.ID.String() {
		t.Errorf("reference = %s", stock.calls[0].reference)
	}
}

func TestDispense_UnlinkedSkipsStock(t *testing.T) {
	svc, _, stock := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{
		PatientID:  uuid.New(),
		Medication: "ORS sachets",
		Quantity:   5,
		CreatedBy:  "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Dispense(ctx, p.ID, "pharm1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stock.calls) != 0 {
		t.Error("unlinked prescription should not touch inventory")
	}
}

func TestDispense_StockFailureFailsDispense(t *testing.T) {
	svc, _, stock := newTestService()
	ctx := context.Background()
	itemID := uuid.New()
	stock.err = errors.New("insufficient stock")

	p, err := svc.Create(ctx, CreateRequest{
		PatientID:  uuid.New(),
		Medication: "Ibuprofen 400mg",
		Quantity:   10,
		ItemID:     &itemID,
		CreatedBy:  "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Dispense(ctx, p.ID, "pharm1"); err == nil {
		t.Fatal("expected dispense to fail when stock issue fails")
	}
}

func TestDispense_Terminal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{
		PatientID: uuid.New(), Medication: "Paracetamol", Quantity: 10, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Dispense(ctx, p.ID, "pharm1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Dispense(ctx, p.ID, "pharm1"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{
		PatientID: uuid.New(), Medication: "Paracetamol", Quantity: 10, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err = svc.Cancel(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", p.Status)
	}
	if _, err := svc.Cancel(ctx, p.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}
}

func TestHasPendingPrescriptions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	pending, err := svc.HasPendingPrescriptions(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending {
		t.Error("patient with no prescriptions should have nothing pending")
	}

	p, err := svc.Create(ctx, CreateRequest{
		PatientID: patientID, Medication: "Paracetamol", Quantity: 10, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ = svc.HasPendingPrescriptions(ctx, patientID)
	if !pending {
		t.Error("pending prescription should be reported")
	}

	if _, err := svc.Dispense(ctx, p.ID, "pharm1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, _ = svc.HasPendingPrescriptions(ctx, patientID)
	if pending {
		t.Error("dispensed prescription should not be reported as pending")
	}
}
