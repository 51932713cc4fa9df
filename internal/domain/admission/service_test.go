package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	wards      map[uuid.UUID]*Ward
	beds       map[uuid.UUID]*Bed
	admissions map[uuid.UUID]*Admission
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		wards:      make(map[uuid.UUID]*Ward),
		beds:       make(map[uuid.UUID]*Bed),
		admissions: make(map[uuid.UUID]*Admission),
	}
}

func (m *mockRepo) CreateWard(_ context.Context, w *Ward) error {
	w.ID = uuid.New()
	m.wards[w.ID] = w
	return nil
}

func (m *mockRepo) GetWard(_ context.Context, id uuid.UUID) (*Ward, error) {
	w, ok := m.wards[id]
	if !ok {
		return nil, ErrWardNotFound
	}
	return w, nil
}

func (m *mockRepo) ListWards(_ context.Context) ([]*Ward, error) {
	var out []*Ward
	for _, w := range m.wards {
		out = append(out, w)
	}
	return out, nil
}

func (m *mockRepo) CreateBed(_ context.Context, b *Bed) error {
	for _, existing := range m.beds {
		if existing.WardID == b.WardID && existing.Code == b.Code {
			return ErrDuplicateBedCode
		}
	}
	b.ID = uuid.New()
	m.beds[b.ID] = b
	return nil
}

func (m *mockRepo) GetBed(_ context.Context, id uuid.UUID) (*Bed, error) {
	b, ok := m.beds[id]
	if !ok {
		return nil, ErrBedNotFound
	}
	return b, nil
}

func (m *mockRepo) ListBeds(_ context.Context, wardID uuid.UUID, status BedStatus) ([]*Bed, error) {
	var out []*Bed
	for _, b := range m.beds {
		if wardID != uuid.Nil && b.WardID != wardID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *mockRepo) SetBedStatus(_ context.Context, id uuid.UUID, status BedStatus) error {
	b, ok := m.beds[id]
	if !ok {
		return ErrBedNotFound
	}
	b.Status = status
	return nil
}

func (m *mockRepo) OccupyBed(_ context.Context, id uuid.UUID) error {
	b, ok := m.beds[id]
	if !ok {
		return ErrBedNotFound
	}
	if b.Status != BedAvailable {
		return ErrBedUnavailable
	}
	b.Status = BedOccupied
	return nil
}

func (m *mockRepo) FreeBed(_ context.Context, id uuid.UUID) error {
	b, ok := m.beds[id]
	if !ok {
		return ErrBedNotFound
	}
	b.Status = BedAvailable
	return nil
}

func (m *mockRepo) CreateAdmission(_ context.Context, a *Admission) error {
	a.ID = uuid.New()
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) GetAdmission(_ context.Context, id uuid.UUID) (*Admission, error) {
	a, ok := m.admissions[id]
	if !ok {
		return nil, ErrAdmissionNotFound
	}
	return a, nil
}

func (m *mockRepo) FindActiveByPatient(_ context.Context, patientID uuid.UUID) (*Admission, error) {
	for _, a := range m.admissions {
		if a.PatientID == patientID && a.Status != StatusDischarged {
			return a, nil
		}
	}
	return nil, ErrAdmissionNotFound
}

func (m *mockRepo) UpdateAdmission(_ context.Context, a *Admission) error {
	if _, ok := m.admissions[a.ID]; !ok {
		return ErrAdmissionNotFound
	}
	m.admissions[a.ID] = a
	return nil
}

func (m *mockRepo) ListAdmissions(_ context.Context, filter ListFilter, _, _ int) ([]*Admission, int, error) {
	var out []*Admission
	for _, a := range m.admissions {
		if filter.PatientID != uuid.Nil && a.PatientID != filter.PatientID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListOccupancy(_ context.Context) ([]*Occupancy, error) {
	return nil, nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type counterSeq struct{ counts map[string]int64 }

func (c *counterSeq) Next(_ context.Context, scope string) (int64, error) {
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[scope]++
	return c.counts[scope], nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, passTx{}, &counterSeq{}, zerolog.Nop()), repo
}

// newWardWithBed seeds one ward with one available bed.
func newWardWithBed(t *testing.T, svc *Service) (*Ward, *Bed) {
	t.Helper()
	ctx := context.Background()
	w := &Ward{Name: "Ward A", Type: WardGeneral, Capacity: 10}
	if err := svc.CreateWard(ctx, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := &Bed{WardID: w.ID, Code: "A-01"}
	if err := svc.CreateBed(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w, b
}

func TestAdmit_OccupiesBed(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CareLevel: CareICU, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.AdmissionNumber != "ICU-000001" {
		t.Errorf("admission number = %s, want ICU-000001", a.AdmissionNumber)
	}
	if a.Status != StatusAdmitted {
		t.Errorf("status = %s, want admitted", a.Status)
	}
	if repo.beds[bed.ID].Status != BedOccupied {
		t.Error("bed should be occupied after admission")
	}
}

func TestAdmit_DefaultCareLevel(t *testing.T) {
	svc, _ := newTestService()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(context.Background(), AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CareLevel != CareGeneral {
		t.Errorf("care level = %s, want general", a.CareLevel)
	}
	if a.AdmissionNumber != "ADM-000001" {
		t.Errorf("admission number = %s, want ADM-000001", a.AdmissionNumber)
	}
}

func TestAdmit_OccupiedBedRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	if _, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if !errors.Is(err, ErrBedUnavailable) {
		t.Fatalf("expected ErrBedUnavailable, got %v", err)
	}
}

func TestAdmit_PatientAlreadyAdmitted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w, bed := newWardWithBed(t, svc)
	patientID := uuid.New()

	if _, err := svc.Admit(ctx, AdmitRequest{
		PatientID: patientID, BedID: bed.ID, CreatedBy: "dr.okello",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := &Bed{WardID: w.ID, Code: "A-02"}
	if err := svc.CreateBed(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Admit(ctx, AdmitRequest{
		PatientID: patientID, BedID: other.ID, CreatedBy: "dr.okello",
	})
	if !errors.Is(err, ErrActiveAdmission) {
		t.Fatalf("expected ErrActiveAdmission, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	w, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dest := &Bed{WardID: w.ID, Code: "A-02"}
	if err := svc.CreateBed(ctx, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err = svc.Transfer(ctx, a.ID, dest.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.BedID != dest.ID {
		t.Error("admission should point at the destination bed")
	}
	if repo.beds[bed.ID].Status != BedAvailable {
		t.Error("old bed should be freed")
	}
	if repo.beds[dest.ID].Status != BedOccupied {
		t.Error("destination bed should be occupied")
	}
}

func TestTransfer_SameBed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Transfer(ctx, a.ID, bed.ID); !errors.Is(err, ErrBedUnavailable) {
		t.Fatalf("expected ErrBedUnavailable, got %v", err)
	}
}

func TestDischarge_FreesBed(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err = svc.Discharge(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusDischarged {
		t.Errorf("status = %s, want discharged", a.Status)
	}
	if a.DischargedAt == nil {
		t.Error("discharged_at not stamped")
	}
	if repo.beds[bed.ID].Status != BedAvailable {
		t.Error("bed should be available after discharge")
	}

	if _, err := svc.Discharge(ctx, a.ID); !errors.Is(err, ErrAlreadyDischarged) {
		t.Fatalf("expected ErrAlreadyDischarged on double discharge, got %v", err)
	}
}

func TestDischarge_BedAlreadyFreed(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.beds[bed.ID].Status = BedAvailable

	if _, err := svc.Discharge(ctx, a.ID); err != nil {
		t.Fatalf("discharge should tolerate an already-freed bed: %v", err)
	}
}

func TestDischarge_ReleasedBedIsReusable(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Discharge(ctx, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	}); err != nil {
		t.Fatalf("freed bed should accept a new admission: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	a, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err = svc.UpdateStatus(ctx, a.ID, StatusCritical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusCritical {
		t.Errorf("status = %s, want critical", a.Status)
	}

	if _, err := svc.UpdateStatus(ctx, a.ID, StatusDischarged); err == nil {
		t.Error("discharging through UpdateStatus should be rejected")
	}
}

func TestSetBedStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, bed := newWardWithBed(t, svc)

	if err := svc.SetBedStatus(ctx, bed.ID, BedMaintenance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetBedStatus(ctx, bed.ID, BedOccupied); err == nil {
		t.Error("occupied can only be set through admissions")
	}

	if err := svc.SetBedStatus(ctx, bed.ID, BedAvailable); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Admit(ctx, AdmitRequest{
		PatientID: uuid.New(), BedID: bed.ID, CreatedBy: "dr.okello",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetBedStatus(ctx, bed.ID, BedMaintenance); !errors.Is(err, ErrBedUnavailable) {
		t.Fatalf("expected ErrBedUnavailable for an occupied bed, got %v", err)
	}
}

func TestCreateBed_RequiresWard(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateBed(context.Background(), &Bed{WardID: uuid.New(), Code: "X-01"})
	if !errors.Is(err, ErrWardNotFound) {
		t.Fatalf("expected ErrWardNotFound, got %v", err)
	}
}

func TestCreateWard_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.CreateWard(ctx, &Ward{Type: WardGeneral, Capacity: 10}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreateWard(ctx, &Ward{Name: "W", Type: "cafeteria", Capacity: 10}); err == nil {
		t.Error("expected error for unknown ward type")
	}
	if err := svc.CreateWard(ctx, &Ward{Name: "W", Type: WardGeneral}); err == nil {
		t.Error("expected error for zero capacity")
	}
}
