package pharmacy

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrAlreadySettled       = errors.New("prescription is already dispensed or cancelled")
)
