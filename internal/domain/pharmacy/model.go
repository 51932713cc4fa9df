package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionStatus is the dispensing lifecycle.
type PrescriptionStatus string

const (
	StatusPending   PrescriptionStatus = "pending"
	StatusDispensed PrescriptionStatus = "dispensed"
	StatusCancelled PrescriptionStatus = "cancelled"
)

var prescriptionStatuses = map[PrescriptionStatus]bool{
	StatusPending: true, StatusDispensed: true, StatusCancelled: true,
}

func (s PrescriptionStatus) Valid() bool { return prescriptionStatuses[s] }

// Terminal reports whether the prescription can no longer change.
func (s PrescriptionStatus) Terminal() bool {
	return s == StatusDispensed || s == StatusCancelled
}

// Prescription is a medication order awaiting dispensing at the pharmacy
// counter. A pending prescription is what admits a patient to the pharmacy
// queue.
type Prescription struct {
	ID           uuid.UUID          `db:"id" json:"id"`
	PatientID    uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID     *uuid.UUID         `db:"doctor_id" json:"doctor_id,omitempty"`
	Medication   string             `db:"medication" json:"medication"`
	Dosage       string             `db:"dosage" json:"dosage"`
	Quantity     int                `db:"quantity" json:"quantity"`
	Instructions *string            `db:"instructions" json:"instructions,omitempty"`
	Status       PrescriptionStatus `db:"status" json:"status"`
	ItemID       *uuid.UUID         `db:"item_id" json:"item_id,omitempty"`
	DispensedBy  *string            `db:"dispensed_by" json:"dispensed_by,omitempty"`
	DispensedAt  *time.Time         `db:"dispensed_at" json:"dispensed_at,omitempty"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}
