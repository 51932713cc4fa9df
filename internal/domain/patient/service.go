package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hmis/hmis/internal/platform/events"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sequencer hands out gap-free numbers per scope.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

const mrnScope = "mrn"

type Service struct {
	repo   Repository
	tx     TxRunner
	seq    Sequencer
	pub    events.Publisher
	logger zerolog.Logger
}

func NewService(repo Repository, tx TxRunner, seq Sequencer, pub events.Publisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, seq: seq, pub: pub, logger: logger}
}

// RegisterRequest carries a new patient registration.
type RegisterRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      Gender     `json:"gender"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Address     *string    `json:"address,omitempty"`
}

// Register assigns an MRN and stores the patient, then announces the
// registration on the event bus. Downstream automation (the triage queue
// hook) runs off that event, so registration never waits on it and never
// fails because of it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Patient, error) {
	if req.FirstName == "" {
		return nil, fmt.Errorf("first_name is required")
	}
	if req.LastName == "" {
		return nil, fmt.Errorf("last_name is required")
	}
	if req.Gender == "" {
		req.Gender = GenderUnknown
	}
	if !req.Gender.Valid() {
		return nil, fmt.Errorf("invalid gender: %s", req.Gender)
	}

	p := &Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		seq, err := s.seq.Next(ctx, mrnScope)
		if err != nil {
			return fmt.Errorf("next mrn: %w", err)
		}
		p.MRN = FormatMRN(seq)
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	evt := events.NewEvent(events.TypePatientRegistered, map[string]string{
		"patient_id": p.ID.String(),
		"mrn":        p.MRN,
	})
	if err := s.pub.Publish(ctx, events.ChannelPatient, evt); err != nil {
		s.logger.Warn().Err(err).Str("mrn", p.MRN).Msg("publish patient.registered failed")
	}

	s.logger.Info().Str("mrn", p.MRN).Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.repo.GetByMRN(ctx, mrn)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return s.repo.Update(ctx, p)
}

// Search matches against name and MRN.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, query, limit, offset)
}

// DisplayName resolves a patient's display name for queue joins.
func (s *Service) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return p.DisplayName(), nil
}
