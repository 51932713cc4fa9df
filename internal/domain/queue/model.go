package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServicePoint is a named station in the patient's journey with its own queue.
type ServicePoint string

const (
	Triage       ServicePoint = "triage"
	Cashier      ServicePoint = "cashier"
	Consultation ServicePoint = "consultation"
	Laboratory   ServicePoint = "laboratory"
	Pharmacy     ServicePoint = "pharmacy"
	General      ServicePoint = "general"
)

var servicePoints = map[ServicePoint]bool{
	Triage: true, Cashier: true, Consultation: true,
	Laboratory: true, Pharmacy: true, General: true,
}

func (sp ServicePoint) Valid() bool { return servicePoints[sp] }

// TicketPrefix is the single-letter prefix shown on printed tickets.
func (sp ServicePoint) TicketPrefix() string {
	return strings.ToUpper(string(sp[:1]))
}

// Priority of a queue entry.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

var priorities = map[Priority]bool{
	PriorityNormal: true, PriorityUrgent: true, PriorityEmergency: true,
}

func (p Priority) Valid() bool { return priorities[p] }

// Status of a queue entry. Transitions move forward along
// waiting -> called -> serving -> completed; cancelled is reachable from any
// non-terminal status. Completed and cancelled are terminal.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusWaiting:   0,
	StatusCalled:    1,
	StatusServing:   2,
	StatusCompleted: 3,
}

func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether next is a legal transition from s.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Entry is a patient's active position at one service point.
type Entry struct {
	ID                   uuid.UUID    `db:"id" json:"id"`
	PatientID            uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID             *uuid.UUID   `db:"doctor_id" json:"doctor_id,omitempty"`
	TicketNumber         string       `db:"ticket_number" json:"ticket_number"`
	ServicePoint         ServicePoint `db:"service_point" json:"service_point"`
	Priority             Priority     `db:"priority" json:"priority"`
	Status               Status       `db:"status" json:"status"`
	ArrivalTime          time.Time    `db:"arrival_time" json:"arrival_time"`
	CalledTime           *time.Time   `db:"called_time" json:"called_time,omitempty"`
	StartTime            *time.Time   `db:"start_time" json:"start_time,omitempty"`
	EndTime              *time.Time   `db:"end_time" json:"end_time,omitempty"`
	EstimatedWaitMinutes *int         `db:"estimated_wait_minutes" json:"estimated_wait_minutes,omitempty"`
	Notes                *string      `db:"notes" json:"notes,omitempty"`
	CreatedBy            string       `db:"created_by" json:"created_by"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`

	// Duplicate marks an idempotent create that returned an existing active
	// entry instead of inserting a new row. Never persisted.
	Duplicate bool `db:"-" json:"duplicate,omitempty"`
}

// HistoryEntry is the immutable archive of an Entry with derived duration
// metrics. Created once by the archive operation, never mutated.
type HistoryEntry struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	QueueID            uuid.UUID    `db:"queue_id" json:"queue_id"`
	PatientID          uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID           *uuid.UUID   `db:"doctor_id" json:"doctor_id,omitempty"`
	TicketNumber       string       `db:"ticket_number" json:"ticket_number"`
	ServicePoint       ServicePoint `db:"service_point" json:"service_point"`
	Priority           Priority     `db:"priority" json:"priority"`
	Status             Status       `db:"status" json:"status"`
	ArrivalTime        time.Time    `db:"arrival_time" json:"arrival_time"`
	CalledTime         *time.Time   `db:"called_time" json:"called_time,omitempty"`
	StartTime          *time.Time   `db:"start_time" json:"start_time,omitempty"`
	EndTime            *time.Time   `db:"end_time" json:"end_time,omitempty"`
	WaitTimeMinutes    *int         `db:"wait_time_minutes" json:"wait_time_minutes,omitempty"`
	ServiceTimeMinutes *int         `db:"service_time_minutes" json:"service_time_minutes,omitempty"`
	TotalTimeMinutes   *int         `db:"total_time_minutes" json:"total_time_minutes,omitempty"`
	Notes              *string      `db:"notes" json:"notes,omitempty"`
	CreatedBy          string       `db:"created_by" json:"created_by"`
	ArchivedAt         time.Time    `db:"archived_at" json:"archived_at"`
}

// Metrics computes the three duration metrics for an entry. Each metric is
// nil unless both of its endpoint timestamps are set.
func (e *Entry) Metrics() (wait, service, total *int) {
	if e.CalledTime != nil {
		wait = minutesBetween(e.ArrivalTime, *e.CalledTime)
	}
	if e.StartTime != nil && e.EndTime != nil {
		service = minutesBetween(*e.StartTime, *e.EndTime)
	}
	if e.EndTime != nil {
		total = minutesBetween(e.ArrivalTime, *e.EndTime)
	}
	return wait, service, total
}

// TimeSummary is a live read model of an entry's durations. For entries still
// in progress, "now" substitutes for any missing endpoint so callers can show
// elapsed time. Never persisted.
type TimeSummary struct {
	QueueID            uuid.UUID `json:"queue_id"`
	Status             Status    `json:"status"`
	InProgress         bool      `json:"in_progress"`
	WaitTimeMinutes    *int      `json:"wait_time_minutes,omitempty"`
	ServiceTimeMinutes *int      `json:"service_time_minutes,omitempty"`
	TotalTimeMinutes   *int      `json:"total_time_minutes,omitempty"`
}

// TimeSummaryAt computes the live durations for the entry as of now.
func (e *Entry) TimeSummaryAt(now time.Time) TimeSummary {
	ts := TimeSummary{
		QueueID:    e.ID,
		Status:     e.Status,
		InProgress: !e.Status.Terminal(),
	}

	calledOrNow := now
	if e.CalledTime != nil {
		calledOrNow = *e.CalledTime
	} else if e.Status.Terminal() {
		// Never called: wait time is unknowable for a finished entry.
		calledOrNow = time.Time{}
	}
	if !calledOrNow.IsZero() {
		ts.WaitTimeMinutes = minutesBetween(e.ArrivalTime, calledOrNow)
	}

	if e.StartTime != nil {
		endOrNow := now
		if e.EndTime != nil {
			endOrNow = *e.EndTime
		}
		ts.ServiceTimeMinutes = minutesBetween(*e.StartTime, endOrNow)
	}

	endOrNow := now
	if e.EndTime != nil {
		endOrNow = *e.EndTime
	}
	ts.TotalTimeMinutes = minutesBetween(e.ArrivalTime, endOrNow)

	return ts
}

// toHistory builds the archive row for the entry.
func (e *Entry) toHistory(archivedAt time.Time) *HistoryEntry {
	wait, service, total := e.Metrics()
	return &HistoryEntry{
		ID:                 uuid.New(),
		QueueID:            e.ID,
		PatientID:          e.PatientID,
		DoctorID:           e.DoctorID,
		TicketNumber:       e.TicketNumber,
		ServicePoint:       e.ServicePoint,
		Priority:           e.Priority,
		Status:             e.Status,
		ArrivalTime:        e.ArrivalTime,
		CalledTime:         e.CalledTime,
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		WaitTimeMinutes:    wait,
		ServiceTimeMinutes: service,
		TotalTimeMinutes:   total,
		Notes:              e.Notes,
		CreatedBy:          e.CreatedBy,
		ArchivedAt:         archivedAt,
	}
}

func minutesBetween(from, to time.Time) *int {
	m := int(to.Sub(from).Minutes())
	if m < 0 {
		m = 0
	}
	return &m
}

// FormatTicket renders the human-readable ticket shown to patients, e.g.
// C-007 for the seventh cashier ticket of the day.
func FormatTicket(sp ServicePoint, seq int64) string {
	return fmt.Sprintf("%s-%03d", sp.TicketPrefix(), seq)
}
