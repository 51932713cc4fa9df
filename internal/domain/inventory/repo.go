package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	Category string
	LowStock bool
	Search   string
}

type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	GetItemBySKU(ctx context.Context, sku string) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	ListItems(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error)

	// ApplyDelta atomically adds delta to the item's quantity and returns the
	// new balance. It fails with ErrInsufficientStock when the result would
	// go negative, without changing the row.
	ApplyDelta(ctx context.Context, itemID uuid.UUID, delta int) (int, error)

	CreateTransaction(ctx context.Context, txn *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	ListTransactions(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
}
