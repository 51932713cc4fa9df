package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a stock movement. Each type has a fixed sign
// except adjustment, which carries an explicit direction.
type TransactionType string

const (
	TypeReceipt    TransactionType = "receipt"
	TypeIssue      TransactionType = "issue"
	TypeAdjustment TransactionType = "adjustment"
	TypeWastage    TransactionType = "wastage"
	TypeExpiry     TransactionType = "expiry"
	TypeReturn     TransactionType = "return"
	TypeTransfer   TransactionType = "transfer"
)

var transactionTypes = map[TransactionType]bool{
	TypeReceipt: true, TypeIssue: true, TypeAdjustment: true, TypeWastage: true,
	TypeExpiry: true, TypeReturn: true, TypeTransfer: true,
}

func (t TransactionType) Valid() bool { return transactionTypes[t] }

// Direction is the sign of an adjustment.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Delta computes the signed stock change for a movement of the given type.
// Receipts and returns add stock; issues, wastage, expiry and transfers
// remove it. Adjustments follow the supplied direction.
func (t TransactionType) Delta(quantity int, dir Direction) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}
	switch t {
	case TypeReceipt, TypeReturn:
		return quantity, nil
	case TypeIssue, TypeWastage, TypeExpiry, TypeTransfer:
		return -quantity, nil
	case TypeAdjustment:
		switch dir {
		case DirectionIn:
			return quantity, nil
		case DirectionOut:
			return -quantity, nil
		default:
			return 0, fmt.Errorf("adjustment requires direction in or out")
		}
	default:
		return 0, fmt.Errorf("invalid transaction type: %s", t)
	}
}

// Item is a stocked product. Quantity is only ever changed through the
// transaction ledger, so the ledger's deltas always sum to it.
type Item struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	Category     *string         `db:"category" json:"category,omitempty"`
	Unit         string          `db:"unit" json:"unit"`
	Quantity     int             `db:"quantity" json:"quantity"`
	ReorderLevel int             `db:"reorder_level" json:"reorder_level"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExpiryDate   *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i *Item) LowStock() bool { return i.Quantity <= i.ReorderLevel }

// Transaction is one row in the stock ledger. Delta is signed, so the sum
// of a item's deltas always equals its quantity on hand. Reversing a
// transaction applies the negated delta and removes the row in one
// transaction, keeping that invariant.
type Transaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	TxnNumber    string          `db:"txn_number" json:"txn_number"`
	ItemID       uuid.UUID       `db:"item_id" json:"item_id"`
	Type         TransactionType `db:"type" json:"type"`
	Delta        int             `db:"delta" json:"delta"`
	BalanceAfter int             `db:"balance_after" json:"balance_after"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	PerformedBy  string          `db:"performed_by" json:"performed_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// FormatTxnNumber renders a sequence value as a display number.
func FormatTxnNumber(seq int64) string { return fmt.Sprintf("TXN-%06d", seq) }
