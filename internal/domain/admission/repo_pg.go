package admission

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

// -- Wards --

func (r *repoPG) CreateWard(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	query := `
		INSERT INTO wards (id, name, type, capacity)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	return r.conn(ctx).QueryRow(ctx, query, w.ID, w.Name, w.Type, w.Capacity).
		Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *repoPG) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	query := `SELECT id, name, type, capacity, created_at, updated_at FROM wards WHERE id = $1`
	var w Ward
	err := r.conn(ctx).QueryRow(ctx, query, id).
		Scan(&w.ID, &w.Name, &w.Type, &w.Capacity, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWardNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *repoPG) ListWards(ctx context.Context) ([]*Ward, error) {
	query := `SELECT id, name, type, capacity, created_at, updated_at FROM wards ORDER BY name`
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		var w Ward
		if err := rows.Scan(&w.ID, &w.Name, &w.Type, &w.Capacity, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		wards = append(wards, &w)
	}
	return wards, rows.Err()
}

// -- Beds --

const bedCols = `id, ward_id, code, status, created_at, updated_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.WardID, &b.Code, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBedNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) CreateBed(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	query := `
		INSERT INTO beds (id, ward_id, code, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	err := r.conn(ctx).QueryRow(ctx, query, b.ID, b.WardID, b.Code, b.Status).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateBedCode
		}
		return err
	}
	return nil
}

func (r *repoPG) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	query := `SELECT ` + bedCols + ` FROM beds WHERE id = $1`
	return scanBed(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) ListBeds(ctx context.Context, wardID uuid.UUID, status BedStatus) ([]*Bed, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argn := 1

	if wardID != uuid.Nil {
		where += fmt.Sprintf(" AND ward_id = $%d", argn)
		args = append(args, wardID)
		argn++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, status)
		argn++
	}

	query := `SELECT ` + bedCols + ` FROM beds` + where + ` ORDER BY code`
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

func (r *repoPG) SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE beds SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBedNotFound
	}
	return nil
}

func (r *repoPG) OccupyBed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE beds SET status = 'occupied', updated_at = NOW()
		WHERE id = $1 AND status = 'available'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, lookupErr := r.GetBed(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return ErrBedUnavailable
	}
	return nil
}

func (r *repoPG) FreeBed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE beds SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'occupied'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// The bed may already be free; only a missing bed is an error.
		_, lookupErr := r.GetBed(ctx, id)
		return lookupErr
	}
	return nil
}

// -- Admissions --

const admissionCols = `id, admission_number, patient_id, bed_id, doctor_id, care_level,
	status, diagnosis, notes, admitted_at, discharged_at, created_by, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.AdmissionNumber, &a.PatientID, &a.BedID, &a.DoctorID,
		&a.CareLevel, &a.Status, &a.Diagnosis, &a.Notes,
		&a.AdmittedAt, &a.DischargedAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdmissionNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) CreateAdmission(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	query := `
		INSERT INTO admissions (id, admission_number, patient_id, bed_id, doctor_id, care_level, status, diagnosis, notes, admitted_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`
	return r.conn(ctx).QueryRow(ctx, query,
		a.ID, a.AdmissionNumber, a.PatientID, a.BedID, a.DoctorID,
		a.CareLevel, a.Status, a.Diagnosis, a.Notes, a.AdmittedAt, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	query := `SELECT ` + admissionCols + ` FROM admissions WHERE id = $1`
	return scanAdmission(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *repoPG) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	query := `SELECT ` + admissionCols + ` FROM admissions
		WHERE patient_id = $1 AND status != 'discharged'
		ORDER BY admitted_at DESC LIMIT 1`
	return scanAdmission(r.conn(ctx).QueryRow(ctx, query, patientID))
}

func (r *repoPG) UpdateAdmission(ctx context.Context, a *Admission) error {
	query := `
		UPDATE admissions
		SET bed_id = $2, status = $3, diagnosis = $4, notes = $5, discharged_at = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, query,
		a.ID, a.BedID, a.Status, a.Diagnosis, a.Notes, a.DischargedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAdmissionNotFound
	}
	return nil
}

func (r *repoPG) ListAdmissions(ctx context.Context, filter ListFilter, limit, offset int) ([]*Admission, int, error) {
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
	if filter.CareLevel != "" {
		where += fmt.Sprintf(" AND care_level = $%d", argn)
		args = append(args, filter.CareLevel)
		argn++
	}

	countQuery := `SELECT COUNT(*) FROM admissions` + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + admissionCols + ` FROM admissions` + where +
		fmt.Sprintf(" ORDER BY admitted_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var admissions []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}
	return admissions, total, rows.Err()
}

func (r *repoPG) ListOccupancy(ctx context.Context) ([]*Occupancy, error) {
	query := `
		SELECT w.id, w.name, w.type, w.capacity,
			COUNT(b.id) AS total,
			COUNT(b.id) FILTER (WHERE b.status = 'occupied') AS occupied,
			COUNT(b.id) FILTER (WHERE b.status = 'available') AS available
		FROM wards w
		LEFT JOIN beds b ON b.ward_id = w.id
		GROUP BY w.id, w.name, w.type, w.capacity
		ORDER BY w.name`
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occ []*Occupancy
	for rows.Next() {
		var o Occupancy
		if err := rows.Scan(&o.WardID, &o.WardName, &o.WardType, &o.Capacity, &o.Total, &o.Occupied, &o.Available); err != nil {
			return nil, err
		}
		occ = append(occ, &o)
	}
	return occ, rows.Err()
}
