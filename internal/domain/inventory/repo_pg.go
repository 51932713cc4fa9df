package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmis/hmis/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const itemCols = `id, sku, name, category, unit, quantity, reorder_level, unit_cost, expiry_date, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.SKU, &i.Name, &i.Category, &i.Unit,
		&i.Quantity, &i.ReorderLevel, &i.UnitCost, &i.ExpiryDate,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *repoPG) CreateItem(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	query := `
		INSERT INTO inventory_items (id, sku, name, category, unit, quantity, reorder_level, unit_cost, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err := r.conn(ctx).QueryRow(ctx, query,
		item.ID, item.SKU, item.Name, item.Category, item.Unit,
		item.Quantity, item.ReorderLevel, item.UnitCost, item.ExpiryDate,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSKU
		}
		return err
	}
	return nil
}

func (r *repoPG) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	query := `SELECT ` + itemCols + ` FROM inventory_items WHERE id = $1`
	return scanItem(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) GetItemBySKU(ctx context.Context, sku string) (*Item, error) {
	query := `SELECT ` + itemCols + ` FROM inventory_items WHERE sku = $1`
	return scanItem(r.conn(ctx).QueryRow(ctx, query, sku))
}

func (r *repoPG) UpdateItem(ctx context.Context, item *Item) error {
	query := `
		UPDATE inventory_items
		SET name = $2, category = $3, unit = $4, reorder_level = $5, unit_cost = $6, expiry_date = $7, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, query,
		item.ID, item.Name, item.Category, item.Unit,
		item.ReorderLevel, item.UnitCost, item.ExpiryDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repoPG) ListItems(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argn := 1

	if filter.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argn)
		args = append(args, filter.Category)
		argn++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d)", argn, argn)
		args = append(args, "%"+filter.Search+"%")
		argn++
	}
	if filter.LowStock {
		where += " AND quantity <= reorder_level"
	}

	countQuery := `SELECT COUNT(*) FROM inventory_items` + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + itemCols + ` FROM inventory_items` + where +
		fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

// ApplyDelta is the single write path for quantities. The guard in the
// WHERE clause makes negative stock impossible even under concurrent
// movements; zero rows means either an unknown item or not enough stock,
// and a second lookup picks the right error.
func (r *repoPG) ApplyDelta(ctx context.Context, itemID uuid.UUID, delta int) (int, error) {
	query := `
		UPDATE inventory_items
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING quantity`
	var balance int
	err := r.conn(ctx).QueryRow(ctx, query, itemID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, lookupErr := r.GetItem(ctx, itemID); lookupErr != nil {
				return 0, lookupErr
			}
			return 0, ErrInsufficientStock
		}
		return 0, err
	}
	return balance, nil
}

const txnCols = `id, txn_number, item_id, type, delta, balance_after, reference, notes, performed_by, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.TxnNumber, &t.ItemID, &t.Type, &t.Delta,
		&t.BalanceAfter, &t.Reference, &t.Notes, &t.PerformedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) CreateTransaction(ctx context.Context, txn *Transaction) error {
	txn.ID = uuid.New()
	query := `
		INSERT INTO inventory_transactions (id, txn_number, item_id, type, delta, balance_after, reference, notes, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	return r.conn(ctx).QueryRow(ctx, query,
		txn.ID, txn.TxnNumber, txn.ItemID, txn.Type, txn.Delta,
		txn.BalanceAfter, txn.Reference, txn.Notes, txn.PerformedBy,
	).Scan(&txn.CreatedAt)
}

func (r *repoPG) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `SELECT ` + txnCols + ` FROM inventory_transactions WHERE id = $1`
	return scanTransaction(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM inventory_transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *repoPG) ListTransactions(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argn := 1

	if itemID != uuid.Nil {
		where += fmt.Sprintf(" AND item_id = $%d", argn)
		args = append(args, itemID)
		argn++
	}

	countQuery := `SELECT COUNT(*) FROM inventory_transactions` + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + txnCols + ` FROM inventory_transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, t)
	}
	return txns, total, rows.Err()
}
