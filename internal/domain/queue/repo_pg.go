package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmis/hmis/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const entryCols = `id, patient_id, doctor_id, ticket_number, service_point, priority, status,
	arrival_time, called_time, start_time, end_time, estimated_wait_minutes, notes,
	created_by, created_at, updated_at`

func (r *repoPG) scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.TicketNumber, &e.ServicePoint,
		&e.Priority, &e.Status, &e.ArrivalTime, &e.CalledTime, &e.StartTime, &e.EndTime,
		&e.EstimatedWaitMinutes, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_entries (id, patient_id, doctor_id, ticket_number, service_point,
			priority, status, arrival_time, estimated_wait_minutes, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.PatientID, e.DoctorID, e.TicketNumber, e.ServicePoint,
		e.Priority, e.Status, e.ArrivalTime, e.EstimatedWaitMinutes, e.Notes, e.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return r.scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE id = $1`, id))
}

func (r *repoPG) FindActive(ctx context.Context, patientID uuid.UUID, sp ServicePoint) (*Entry, error) {
	return r.scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE patient_id = $1 AND service_point = $2 AND status IN ('waiting','called','serving')
		ORDER BY arrival_time ASC LIMIT 1`, patientID, sp))
}

func (r *repoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID, sp ServicePoint) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE patient_id = $1 AND service_point = $2 AND status IN ('waiting','called','serving')
		ORDER BY arrival_time ASC`, patientID, sp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_entries SET status=$2, called_time=$3, start_time=$4, end_time=$5,
			priority=$6, doctor_id=$7, estimated_wait_minutes=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Status, e.CalledTime, e.StartTime, e.EndTime,
		e.Priority, e.DoctorID, e.EstimatedWaitMinutes, e.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT ` + entryCols + ` FROM queue_entries WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM queue_entries WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.ServicePoint != "" {
		query += fmt.Sprintf(` AND service_point = $%d`, idx)
		countQuery += fmt.Sprintf(` AND service_point = $%d`, idx)
		args = append(args, filter.ServicePoint)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.PatientID != uuid.Nil {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, filter.PatientID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY arrival_time ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context, sp ServicePoint) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE service_point = $1 AND status IN ('waiting','called','serving')
		ORDER BY arrival_time ASC`, sp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) ListTerminal(ctx context.Context) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM queue_entries
		WHERE status IN ('completed','cancelled')
		ORDER BY arrival_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const historyCols = `id, queue_id, patient_id, doctor_id, ticket_number, service_point, priority,
	status, arrival_time, called_time, start_time, end_time,
	wait_time_minutes, service_time_minutes, total_time_minutes, notes, created_by, archived_at`

func (r *repoPG) scanHistory(row pgx.Row) (*HistoryEntry, error) {
	var h HistoryEntry
	err := row.Scan(&h.ID, &h.QueueID, &h.PatientID, &h.DoctorID, &h.TicketNumber,
		&h.ServicePoint, &h.Priority, &h.Status, &h.ArrivalTime, &h.CalledTime,
		&h.StartTime, &h.EndTime, &h.WaitTimeMinutes, &h.ServiceTimeMinutes,
		&h.TotalTimeMinutes, &h.Notes, &h.CreatedBy, &h.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return &h, err
}

func (r *repoPG) InsertHistory(ctx context.Context, h *HistoryEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_history (id, queue_id, patient_id, doctor_id, ticket_number,
			service_point, priority, status, arrival_time, called_time, start_time, end_time,
			wait_time_minutes, service_time_minutes, total_time_minutes, notes, created_by, archived_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		h.ID, h.QueueID, h.PatientID, h.DoctorID, h.TicketNumber,
		h.ServicePoint, h.Priority, h.Status, h.ArrivalTime, h.CalledTime, h.StartTime, h.EndTime,
		h.WaitTimeMinutes, h.ServiceTimeMinutes, h.TotalTimeMinutes, h.Notes, h.CreatedBy, h.ArchivedAt)
	return err
}

func (r *repoPG) GetHistoryByQueueID(ctx context.Context, queueID uuid.UUID) (*HistoryEntry, error) {
	return r.scanHistory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` FROM queue_history WHERE queue_id = $1`, queueID))
}

func (r *repoPG) ListHistory(ctx context.Context, sp ServicePoint, limit, offset int) ([]*HistoryEntry, int, error) {
	query := `SELECT ` + historyCols + ` FROM queue_history WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM queue_history WHERE 1=1`
	var args []interface{}
	idx := 1

	if sp != "" {
		query += fmt.Sprintf(` AND service_point = $%d`, idx)
		countQuery += fmt.Sprintf(` AND service_point = $%d`, idx)
		args = append(args, sp)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY archived_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*HistoryEntry
	for rows.Next() {
		h, err := r.scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}
