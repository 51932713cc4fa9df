package patient

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hmis/hmis/internal/platform/events"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range m.patients {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Search(_ context.Context, query string, _, _ int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if strings.Contains(p.FirstName, query) || strings.Contains(p.LastName, query) || strings.Contains(p.MRN, query) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type counterSeq struct{ n int64 }

func (c *counterSeq) Next(context.Context, string) (int64, error) {
	c.n++
	return c.n, nil
}

type capturePublisher struct {
	events []events.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, _ string, evt events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func newTestService() (*Service, *mockRepo, *capturePublisher) {
	repo := newMockRepo()
	pub := &capturePublisher{}
	return NewService(repo, passTx{}, &counterSeq{}, pub, zerolog.Nop()), repo, pub
}

func TestRegister_AssignsMRN(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterRequest{FirstName: "Amina", LastName: "Nankya"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MRN != "MRN-000001" {
		t.Errorf("mrn = %s, want MRN-000001", p.MRN)
	}
	if p.Gender != GenderUnknown {
		t.Errorf("gender = %s, want unknown default", p.Gender)
	}

	p2, err := svc.Register(ctx, RegisterRequest{FirstName: "John", LastName: "Okello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.MRN != "MRN-000002" {
		t.Errorf("second mrn = %s, want MRN-000002", p2.MRN)
	}
}

func TestRegister_PublishesEvent(t *testing.T) {
	svc, _, pub := newTestService()

	p, err := svc.Register(context.Background(), RegisterRequest{FirstName: "Amina", LastName: "Nankya"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != events.TypePatientRegistered {
		t.Errorf("event type = %s, want %s", evt.Type, events.TypePatientRegistered)
	}
	if evt.Data["patient_id"] != p.ID.String() {
		t.Error("event should carry the patient id")
	}
	if evt.Data["mrn"] != p.MRN {
		t.Error("event should carry the mrn")
	}
}

func TestRegister_PublishFailureDoesNotFailRegistration(t *testing.T) {
	svc, repo, pub := newTestService()
	pub.err = errors.New("redis down")

	p, err := svc.Register(context.Background(), RegisterRequest{FirstName: "Amina", LastName: "Nankya"})
	if err != nil {
		t.Fatalf("registration should survive a publish failure: %v", err)
	}
	if _, ok := repo.patients[p.ID]; !ok {
		t.Error("patient should be stored")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{LastName: "Nankya"}); err == nil {
		t.Error("expected error for missing first name")
	}
	if _, err := svc.Register(ctx, RegisterRequest{FirstName: "Amina"}); err == nil {
		t.Error("expected error for missing last name")
	}
	if _, err := svc.Register(ctx, RegisterRequest{FirstName: "Amina", LastName: "Nankya", Gender: "n/a"}); err == nil {
		t.Error("expected error for unknown gender")
	}
}

func TestGetByMRN(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterRequest{FirstName: "Amina", LastName: "Nankya"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.GetByMRN(ctx, p.MRN)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != p.ID {
		t.Error("lookup by mrn returned the wrong patient")
	}

	if _, err := svc.GetByMRN(ctx, "MRN-999999"); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, RegisterRequest{FirstName: "Amina", LastName: "Nankya"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, err := svc.DisplayName(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Amina Nankya" {
		t.Errorf("display name = %q, want Amina Nankya", name)
	}
}
