package billing

import "errors"

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvoiceClosed   = errors.New("invoice is already paid or cancelled")
	ErrOverpayment     = errors.New("payment exceeds the outstanding balance")
	ErrInvalidAmount   = errors.New("payment amount must be positive")
	ErrNotDraft        = errors.New("only draft invoices can be issued or amended")
)
