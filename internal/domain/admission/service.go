package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sequencer hands out gap-free numbers per scope.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

type Service struct {
	repo   Repository
	tx     TxRunner
	seq    Sequencer
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx TxRunner, seq Sequencer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, seq: seq, logger: logger, now: time.Now}
}

func admissionScope(level CareLevel) string {
	return fmt.Sprintf("admission:%s", level)
}

// AdmitRequest carries a new inpatient stay.
type AdmitRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	BedID     uuid.UUID  `json:"bed_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	CareLevel CareLevel  `json:"care_level"`
	Diagnosis *string    `json:"diagnosis,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedBy string     `json:"-"`
}

// Admit places a patient in a bed. The bed moves to occupied through a
// conditional update in the same transaction as the admission insert, so a
// bed can never be double booked even under concurrent requests.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Admission, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.BedID == uuid.Nil {
		return nil, fmt.Errorf("bed_id is required")
	}
	if req.CareLevel == "" {
		req.CareLevel = CareGeneral
	}
	if !req.CareLevel.Valid() {
		return nil, fmt.Errorf("invalid care level: %s", req.CareLevel)
	}

	if existing, err := s.repo.FindActiveByPatient(ctx, req.PatientID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrActiveAdmission, existing.AdmissionNumber)
	} else if !errors.Is(err, ErrAdmissionNotFound) {
		return nil, err
	}

	a := &Admission{
		PatientID:  req.PatientID,
		BedID:      req.BedID,
		DoctorID:   req.DoctorID,
		CareLevel:  req.CareLevel,
		Status:     StatusAdmitted,
		Diagnosis:  req.Diagnosis,
		Notes:      req.Notes,
		AdmittedAt: s.now().UTC(),
		CreatedBy:  req.CreatedBy,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.OccupyBed(ctx, req.BedID); err != nil {
			return err
		}
		seq, err := s.seq.Next(ctx, admissionScope(req.CareLevel))
		if err != nil {
			return fmt.Errorf("next admission number: %w", err)
		}
		a.AdmissionNumber = FormatAdmissionNumber(req.CareLevel, seq)
		return s.repo.CreateAdmission(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("admission", a.AdmissionNumber).
		Str("patient_id", a.PatientID.String()).
		Str("bed_id", a.BedID.String()).
		Msg("patient admitted")
	return a, nil
}

// Transfer moves an active admission to another bed. The new bed is
// occupied first; if that fails nothing changes.
func (s *Service) Transfer(ctx context.Context, id, newBedID uuid.UUID) (*Admission, error) {
	if newBedID == uuid.Nil {
		return nil, fmt.Errorf("bed_id is required")
	}

	var a *Admission
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetAdmission(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusDischarged {
			return fmt.Errorf("%w: %s", ErrAlreadyDischarged, a.AdmissionNumber)
		}
		if a.BedID == newBedID {
			return fmt.Errorf("%w: patient already occupies this bed", ErrBedUnavailable)
		}
		if err := s.repo.OccupyBed(ctx, newBedID); err != nil {
			return err
		}
		if err := s.repo.FreeBed(ctx, a.BedID); err != nil {
			return err
		}
		oldBed := a.BedID
		a.BedID = newBedID
		if err := s.repo.UpdateAdmission(ctx, a); err != nil {
			return err
		}
		s.logger.Info().
			Str("admission", a.AdmissionNumber).
			Str("from_bed", oldBed.String()).
			Str("to_bed", newBedID.String()).
			Msg("patient transferred")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Discharge closes the admission and frees its bed atomically.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID) (*Admission, error) {
	var a *Admission
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetAdmission(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusDischarged {
			return fmt.Errorf("%w: %s", ErrAlreadyDischarged, a.AdmissionNumber)
		}
		now := s.now().UTC()
		a.Status = StatusDischarged
		a.DischargedAt = &now
		if err := s.repo.UpdateAdmission(ctx, a); err != nil {
			return err
		}
		return s.repo.FreeBed(ctx, a.BedID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("admission", a.AdmissionNumber).Msg("patient discharged")
	return a, nil
}

// UpdateStatus changes the clinical status. Discharge has its own path
// because it also releases the bed.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status AdmissionStatus) (*Admission, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid admission status: %s", status)
	}
	if status == StatusDischarged {
		return nil, fmt.Errorf("use the discharge operation to discharge a patient")
	}

	a, err := s.repo.GetAdmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusDischarged {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDischarged, a.AdmissionNumber)
	}
	a.Status = status
	if err := s.repo.UpdateAdmission(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetAdmission(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Admission, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid admission status: %s", filter.Status)
	}
	return s.repo.ListAdmissions(ctx, filter, limit, offset)
}

// -- Wards and beds --

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" {
		return fmt.Errorf("name is required")
	}
	if w.Type == "" {
		w.Type = WardGeneral
	}
	if !w.Type.Valid() {
		return fmt.Errorf("invalid ward type: %s", w.Type)
	}
	if w.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	return s.repo.CreateWard(ctx, w)
}

func (s *Service) ListWards(ctx context.Context) ([]*Ward, error) {
	return s.repo.ListWards(ctx)
}

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.WardID == uuid.Nil {
		return fmt.Errorf("ward_id is required")
	}
	if b.Code == "" {
		return fmt.Errorf("code is required")
	}
	if _, err := s.repo.GetWard(ctx, b.WardID); err != nil {
		return err
	}
	b.Status = BedAvailable
	return s.repo.CreateBed(ctx, b)
}

func (s *Service) ListBeds(ctx context.Context, wardID uuid.UUID, status BedStatus) ([]*Bed, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("invalid bed status: %s", status)
	}
	return s.repo.ListBeds(ctx, wardID, status)
}

// SetBedStatus is for maintenance and reservation. Occupancy moves only
// through admissions.
func (s *Service) SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error {
	if status != BedAvailable && status != BedMaintenance && status != BedReserved {
		return fmt.Errorf("bed status %s can only be set through admissions", status)
	}
	bed, err := s.repo.GetBed(ctx, id)
	if err != nil {
		return err
	}
	if bed.Status == BedOccupied {
		return fmt.Errorf("%w: bed is occupied", ErrBedUnavailable)
	}
	return s.repo.SetBedStatus(ctx, id, status)
}

func (s *Service) ListOccupancy(ctx context.Context) ([]*Occupancy, error) {
	return s.repo.ListOccupancy(ctx)
}
