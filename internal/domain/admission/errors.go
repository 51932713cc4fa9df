package admission

import "errors"

var (
	ErrWardNotFound      = errors.New("ward not found")
	ErrBedNotFound       = errors.New("bed not found")
	ErrBedUnavailable    = errors.New("bed is not available")
	ErrAdmissionNotFound = errors.New("admission not found")
	ErrAlreadyDischarged = errors.New("admission is already discharged")
	ErrActiveAdmission   = errors.New("patient already has an active admission")
	ErrDuplicateBedCode  = errors.New("a bed with this code already exists in the ward")
)
