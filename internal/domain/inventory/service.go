package inventory

import (
	"context"
	"fmt"

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

const txnScope = "inventory_txn"

type Service struct {
	repo   Repository
	tx     TxRunner
	seq    Sequencer
	logger zerolog.Logger
}

func NewService(repo Repository, tx TxRunner, seq Sequencer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, seq: seq, logger: logger}
}

// CreateItem stores a new stocked product. Opening stock, when present, is
// recorded as a receipt transaction so the ledger starts consistent.
func (s *Service) CreateItem(ctx context.Context, item *Item, openingStock int, performedBy string) (*Item, error) {
	if item.SKU == "" {
		return nil, fmt.Errorf("sku is required")
	}
	if item.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if item.Unit == "" {
		item.Unit = "unit"
	}
	if item.ReorderLevel < 0 {
		return nil, fmt.Errorf("reorder level cannot be negative")
	}
	if openingStock < 0 {
		return nil, fmt.Errorf("opening stock cannot be negative")
	}
	item.Quantity = 0

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return err
		}
		if openingStock > 0 {
			ref := "opening stock"
			_, err := s.record(ctx, RecordRequest{
				ItemID:      item.ID,
				Type:        TypeReceipt,
				Quantity:    openingStock,
				Reference:   &ref,
				PerformedBy: performedBy,
			})
			if err != nil {
				return err
			}
			item.Quantity = openingStock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RecordRequest describes one stock movement.
type RecordRequest struct {
	ItemID      uuid.UUID       `json:"item_id"`
	Type        TransactionType `json:"type"`
	Quantity    int             `json:"quantity"`
	Direction   Direction       `json:"direction,omitempty"`
	Reference   *string         `json:"reference,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	PerformedBy string          `json:"-"`
}

// RecordTransaction applies one stock movement: the signed delta lands on
// the item and the ledger row is inserted in the same transaction, so the
// two can never disagree. A movement that would drive stock negative fails
// with ErrInsufficientStock and changes nothing.
func (s *Service) RecordTransaction(ctx context.Context, req RecordRequest) (*Transaction, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("invalid transaction type: %s", req.Type)
	}
	var txn *Transaction
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.record(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("txn", txn.TxnNumber).
		Str("item_id", txn.ItemID.String()).
		Str("type", string(txn.Type)).
		Int("delta", txn.Delta).
		Int("balance", txn.BalanceAfter).
		Msg("stock movement recorded")
	return txn, nil
}

// record runs inside an ambient transaction.
func (s *Service) record(ctx context.Context, req RecordRequest) (*Transaction, error) {
	delta, err := req.Type.Delta(req.Quantity, req.Direction)
	if err != nil {
		return nil, err
	}

	balance, err := s.repo.ApplyDelta(ctx, req.ItemID, delta)
	if err != nil {
		return nil, err
	}

	seq, err := s.seq.Next(ctx, txnScope)
	if err != nil {
		return nil, fmt.Errorf("next transaction number: %w", err)
	}

	txn := &Transaction{
		TxnNumber:    FormatTxnNumber(seq),
		ItemID:       req.ItemID,
		Type:         req.Type,
		Delta:        delta,
		BalanceAfter: balance,
		Reference:    req.Reference,
		Notes:        req.Notes,
		PerformedBy:  req.PerformedBy,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ReverseTransaction undoes a recorded movement: the negated delta is
// applied to the item and the ledger row removed, atomically. Reversing a
// receipt that has since been consumed fails with ErrInsufficientStock.
func (s *Service) ReverseTransaction(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		txn, err := s.repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.repo.ApplyDelta(ctx, txn.ItemID, -txn.Delta); err != nil {
			return err
		}
		return s.repo.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("txn_id", id.String()).Msg("stock movement reversed")
	return nil
}

// IssueStock deducts dispensed stock. The runner joins the caller's ambient
// transaction when one is open, so a pharmacy dispense and its stock
// movement commit or roll back together; a bare call still gets its own
// transaction around the quantity update and the ledger insert.
func (s *Service) IssueStock(ctx context.Context, itemID uuid.UUID, quantity int, reference string, performedBy string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.record(ctx, RecordRequest{
			ItemID:      itemID,
			Type:        TypeIssue,
			Quantity:    quantity,
			Reference:   &reference,
			PerformedBy: performedBy,
		})
		return err
	})
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) UpdateItem(ctx context.Context, item *Item) error {
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	if item.ReorderLevel < 0 {
		return fmt.Errorf("reorder level cannot be negative")
	}
	return s.repo.UpdateItem(ctx, item)
}

func (s *Service) ListItems(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	return s.repo.ListItems(ctx, filter, limit, offset)
}

// ListLowStock returns items at or below their reorder level.
func (s *Service) ListLowStock(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	return s.repo.ListItems(ctx, ListFilter{LowStock: true}, limit, offset)
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	return s.repo.ListTransactions(ctx, itemID, limit, offset)
}
