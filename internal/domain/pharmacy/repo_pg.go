package pharmacy

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

const prescriptionCols = `id, patient_id, doctor_id, medication, dosage, quantity, instructions,
	status, item_id, dispensed_by, dispensed_at, created_by, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.Medication, &p.Dosage,
		&p.Quantity, &p.Instructions, &p.Status, &p.ItemID,
		&p.DispensedBy, &p.DispensedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	query := `
		INSERT INTO prescriptions (id, patient_id, doctor_id, medication, dosage, quantity, instructions, status, item_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`
	return r.conn(ctx).QueryRow(ctx, query,
		p.ID, p.PatientID, p.DoctorID, p.Medication, p.Dosage,
		p.Quantity, p.Instructions, p.Status, p.ItemID, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	query := `SELECT ` + prescriptionCols + ` FROM prescriptions WHERE id = $1`
	return scanPrescription(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	query := `
		UPDATE prescriptions
		SET status = $2, dispensed_by = $3, dispensed_at = $4, instructions = $5, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, query,
		p.ID, p.Status, p.DispensedBy, p.DispensedAt, p.Instructions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Prescription, int, error) {
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

	countQuery := `SELECT COUNT(*) FROM prescriptions` + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prescriptionCols + ` FROM prescriptions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, total, rows.Err()
}

func (r *repoPG) HasPendingPrescriptions(ctx context.Context, patientID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM prescriptions WHERE patient_id = $1 AND status = 'pending')`
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, query, patientID).Scan(&exists)
	return exists, err
}
