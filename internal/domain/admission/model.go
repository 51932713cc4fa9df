package admission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WardType groups beds by the kind of care given there.
type WardType string

const (
	WardGeneral   WardType = "general"
	WardICU       WardType = "icu"
	WardMaternity WardType = "maternity"
	WardPediatric WardType = "pediatric"
)

var wardTypes = map[WardType]bool{
	WardGeneral: true, WardICU: true, WardMaternity: true, WardPediatric: true,
}

func (t WardType) Valid() bool { return wardTypes[t] }

type Ward struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      WardType  `db:"type" json:"type"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BedStatus is the occupancy ledger state of one bed.
type BedStatus string

const (
	BedAvailable   BedStatus = "available"
	BedOccupied    BedStatus = "occupied"
	BedMaintenance BedStatus = "maintenance"
	BedReserved    BedStatus = "reserved"
)

var bedStatuses = map[BedStatus]bool{
	BedAvailable: true, BedOccupied: true, BedMaintenance: true, BedReserved: true,
}

func (s BedStatus) Valid() bool { return bedStatuses[s] }

type Bed struct {
	ID        uuid.UUID `db:"id" json:"id"`
	WardID    uuid.UUID `db:"ward_id" json:"ward_id"`
	Code      string    `db:"code" json:"code"`
	Status    BedStatus `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CareLevel decides the admission number prefix and the expected ward type.
type CareLevel string

const (
	CareGeneral   CareLevel = "general"
	CareICU       CareLevel = "icu"
	CareInpatient CareLevel = "inpatient"
)

var careLevels = map[CareLevel]bool{
	CareGeneral: true, CareICU: true, CareInpatient: true,
}

func (c CareLevel) Valid() bool { return careLevels[c] }

// NumberPrefix is the display prefix for admission numbers at this level.
func (c CareLevel) NumberPrefix() string {
	switch c {
	case CareICU:
		return "ICU"
	case CareInpatient:
		return "INP"
	default:
		return "ADM"
	}
}

// AdmissionStatus is the patient's clinical state while admitted.
type AdmissionStatus string

const (
	StatusAdmitted   AdmissionStatus = "admitted"
	StatusCritical   AdmissionStatus = "critical"
	StatusStable     AdmissionStatus = "stable"
	StatusDischarged AdmissionStatus = "discharged"
)

var admissionStatuses = map[AdmissionStatus]bool{
	StatusAdmitted: true, StatusCritical: true, StatusStable: true, StatusDischarged: true,
}

func (s AdmissionStatus) Valid() bool { return admissionStatuses[s] }

// Admission is a patient's stay in a bed. The bed's occupancy and the
// admission row only change together inside a transaction.
type Admission struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	AdmissionNumber string          `db:"admission_number" json:"admission_number"`
	PatientID       uuid.UUID       `db:"patient_id" json:"patient_id"`
	BedID           uuid.UUID       `db:"bed_id" json:"bed_id"`
	DoctorID        *uuid.UUID      `db:"doctor_id" json:"doctor_id,omitempty"`
	CareLevel       CareLevel       `db:"care_level" json:"care_level"`
	Status          AdmissionStatus `db:"status" json:"status"`
	Diagnosis       *string         `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	AdmittedAt      time.Time       `db:"admitted_at" json:"admitted_at"`
	DischargedAt    *time.Time      `db:"discharged_at" json:"discharged_at,omitempty"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// FormatAdmissionNumber renders a sequence value for a care level.
func FormatAdmissionNumber(level CareLevel, seq int64) string {
	return fmt.Sprintf("%s-%06d", level.NumberPrefix(), seq)
}

// Occupancy summarizes a ward's bed usage.
type Occupancy struct {
	WardID    uuid.UUID `db:"ward_id" json:"ward_id"`
	WardName  string    `db:"ward_name" json:"ward_name"`
	WardType  WardType  `db:"ward_type" json:"ward_type"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Total     int       `db:"total" json:"total_beds"`
	Occupied  int       `db:"occupied" json:"occupied"`
	Available int       `db:"available" json:"available"`
}
