package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks an invoice through its payment lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoicePending   InvoiceStatus = "pending"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

var invoiceStatuses = map[InvoiceStatus]bool{
	InvoiceDraft: true, InvoicePending: true, InvoicePartial: true,
	InvoicePaid: true, InvoiceCancelled: true,
}

func (s InvoiceStatus) Valid() bool { return invoiceStatuses[s] }

// Pending reports whether the invoice counts toward the patient's
// outstanding balance. Draft invoices are still being assembled and
// cancelled ones are void, so neither blocks the cashier queue.
func (s InvoiceStatus) Pending() bool {
	return s == InvoicePending || s == InvoicePartial
}

// Terminal reports whether the invoice can no longer change.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// PaymentMethod is how a payment was settled.
type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodCard      PaymentMethod = "card"
	MethodMobile    PaymentMethod = "mobile_money"
	MethodInsurance PaymentMethod = "insurance"
)

var paymentMethods = map[PaymentMethod]bool{
	MethodCash: true, MethodCard: true, MethodMobile: true, MethodInsurance: true,
}

func (m PaymentMethod) Valid() bool { return paymentMethods[m] }

// LineItem is one billed service or product on an invoice.
type LineItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	InvoiceID   uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Description string          `db:"description" json:"description"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}

// Invoice is a bill issued to a patient. Amounts are numeric columns and
// handled as decimals end to end so payment math never drifts.
type Invoice struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Paid          decimal.Decimal `db:"paid" json:"paid"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Items []*LineItem `db:"-" json:"items,omitempty"`
}

// ApplyPayment records amount against the invoice and advances its status.
// The caller validates the amount first.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) {
	inv.Paid = inv.Paid.Add(amount)
	inv.Balance = inv.Total.Sub(inv.Paid)
	if inv.Balance.LessThanOrEqual(decimal.Zero) {
		inv.Status = InvoicePaid
	} else {
		inv.Status = InvoicePartial
	}
}

// Payment is one settlement against an invoice.
type Payment struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	InvoiceID  uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Method     PaymentMethod   `db:"method" json:"method"`
	Reference  *string         `db:"reference" json:"reference,omitempty"`
	ReceivedBy string          `db:"received_by" json:"received_by"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}
