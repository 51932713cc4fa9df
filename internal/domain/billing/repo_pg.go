package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const invoiceCols = `id, invoice_number, patient_id, status, total, paid, balance, notes, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.Status,
		&inv.Total, &inv.Paid, &inv.Balance, &inv.Notes,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	query := `
		INSERT INTO invoices (id, invoice_number, patient_id, status, total, paid, balance, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	return r.conn(ctx).QueryRow(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.Status,
		inv.Total, inv.Paid, inv.Balance, inv.Notes, inv.CreatedBy,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	query := `
		UPDATE invoices
		SET status = $2, total = $3, paid = $4, balance = $5, notes = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, query,
		inv.ID, inv.Status, inv.Total, inv.Paid, inv.Balance, inv.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Invoice, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argn := 1

	if filter.PatientID != uuid.Nil {
		where += fmt.Sprintf(" AND patient_id = $%d", argn)
		args = append(args, filter.PatientID)
		argn++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, filter.Status)
		argn++
	}

	countQuery := `SELECT COUNT(*) FROM invoices` + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + invoiceCols + ` FROM invoices` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *repoPG) AddLineItem(ctx context.Context, li *LineItem) error {
	li.ID = uuid.New()
	query := `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.conn(ctx).Exec(ctx, query,
		li.ID, li.InvoiceID, li.Description, li.Quantity, li.UnitPrice, li.Amount)
	return err
}

func (r *repoPG) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, amount
		FROM invoice_items WHERE invoice_id = $1 ORDER BY description`
	rows, err := r.conn(ctx).Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Description, &li.Quantity, &li.UnitPrice, &li.Amount); err != nil {
			return nil, err
		}
		items = append(items, &li)
	}
	return items, rows.Err()
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	query := `
		INSERT INTO payments (id, invoice_id, amount, method, reference, received_by, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.conn(ctx).Exec(ctx, query,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.ReceivedBy, p.ReceivedAt)
	return err
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	query := `
		SELECT id, invoice_id, amount, method, reference, received_by, received_at
		FROM payments WHERE invoice_id = $1 ORDER BY received_at`
	rows, err := r.conn(ctx).Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.ReceivedBy, &p.ReceivedAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *repoPG) HasPendingBills(ctx context.Context, patientID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE patient_id = $1
			  AND status IN ('pending', 'partial')
			  AND balance > 0
		)`
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, query, patientID).Scan(&exists)
	return exists, err
}
