package queue

import (
	"testing"
	"time"
)

func TestStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusWaiting, StatusCalled, true},
		{StatusWaiting, StatusServing, true},
		{StatusWaiting, StatusCompleted, true},
		{StatusWaiting, StatusCancelled, true},
		{StatusCalled, StatusServing, true},
		{StatusCalled, StatusCompleted, true},
		{StatusCalled, StatusCancelled, true},
		{StatusCalled, StatusWaiting, false},
		{StatusServing, StatusCompleted, true},
		{StatusServing, StatusCancelled, true},
		{StatusServing, StatusCalled, false},
		{StatusServing, StatusWaiting, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusWaiting, false},
		{StatusCancelled, StatusWaiting, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusWaiting, Status("bogus"), false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusWaiting, StatusCalled, StatusServing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusWaiting, StatusCalled, StatusServing, StatusCompleted, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestFormatTicket(t *testing.T) {
	cases := []struct {
		sp   ServicePoint
		seq  int64
		want string
	}{
		{Cashier, 7, "C-007"},
		{Triage, 1, "T-001"},
		{Pharmacy, 123, "P-123"},
		{Laboratory, 1000, "L-1000"},
	}
	for _, c := range cases {
		if got := FormatTicket(c.sp, c.seq); got != c.want {
			t.Errorf("FormatTicket(%s, %d) = %s, want %s", c.sp, c.seq, got, c.want)
		}
	}
}

func TestEntryMetrics(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	called := arrival.Add(12 * time.Minute)
	start := arrival.Add(15 * time.Minute)
	end := arrival.Add(40 * time.Minute)

	e := &Entry{ArrivalTime: arrival, CalledTime: &called, StartTime: &start, EndTime: &end}
	wait, service, total := e.Metrics()
	if wait == nil || *wait != 12 {
		t.Errorf("wait = %v, want 12", wait)
	}
	if service == nil || *service != 25 {
		t.Errorf("service = %v, want 25", service)
	}
	if total == nil || *total != 40 {
		t.Errorf("total = %v, want 40", total)
	}
}

func TestEntryMetrics_MissingTimestamps(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := arrival.Add(5 * time.Minute)

	e := &Entry{ArrivalTime: arrival, EndTime: &end}
	wait, service, total := e.Metrics()
	if wait != nil {
		t.Errorf("wait should be nil without a called time, got %d", *wait)
	}
	if service != nil {
		t.Errorf("service should be nil without a start time, got %d", *service)
	}
	if total == nil || *total != 5 {
		t.Errorf("total = %v, want 5", total)
	}
}

func TestTimeSummaryAt_InProgress(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	called := arrival.Add(10 * time.Minute)
	start := arrival.Add(14 * time.Minute)
	now := arrival.Add(30 * time.Minute)

	e := &Entry{Status: StatusServing, ArrivalTime: arrival, CalledTime: &called, StartTime: &start}
	ts := e.TimeSummaryAt(now)
	if !ts.InProgress {
		t.Error("serving entry should be in progress")
	}
	if ts.WaitTimeMinutes == nil || *ts.WaitTimeMinutes != 10 {
		t.Errorf("wait = %v, want 10", ts.WaitTimeMinutes)
	}
	if ts.ServiceTimeMinutes == nil || *ts.ServiceTimeMinutes != 16 {
		t.Errorf("service = %v, want 16", ts.ServiceTimeMinutes)
	}
	if ts.TotalTimeMinutes == nil || *ts.TotalTimeMinutes != 30 {
		t.Errorf("total = %v, want 30", ts.TotalTimeMinutes)
	}
}

func TestTimeSummaryAt_WaitingUsesNow(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := arrival.Add(17 * time.Minute)

	e := &Entry{Status: StatusWaiting, ArrivalTime: arrival}
	ts := e.TimeSummaryAt(now)
	if ts.WaitTimeMinutes == nil || *ts.WaitTimeMinutes != 17 {
		t.Errorf("wait = %v, want 17", ts.WaitTimeMinutes)
	}
	if ts.ServiceTimeMinutes != nil {
		t.Errorf("service should be nil before serving, got %d", *ts.ServiceTimeMinutes)
	}
	if ts.TotalTimeMinutes == nil || *ts.TotalTimeMinutes != 17 {
		t.Errorf("total = %v, want 17", ts.TotalTimeMinutes)
	}
}

func TestTimeSummaryAt_CancelledNeverCalled(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := arrival.Add(20 * time.Minute)
	now := arrival.Add(90 * time.Minute)

	e := &Entry{Status: StatusCancelled, ArrivalTime: arrival, EndTime: &end}
	ts := e.TimeSummaryAt(now)
	if ts.InProgress {
		t.Error("cancelled entry should not be in progress")
	}
	if ts.WaitTimeMinutes != nil {
		t.Errorf("wait should be nil for a finished entry that was never called, got %d", *ts.WaitTimeMinutes)
	}
	if ts.TotalTimeMinutes == nil || *ts.TotalTimeMinutes != 20 {
		t.Errorf("total = %v, want 20", ts.TotalTimeMinutes)
	}
}

func TestToHistoryPreservesFields(t *testing.T) {
	arrival := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	called := arrival.Add(5 * time.Minute)
	start := arrival.Add(8 * time.Minute)
	end := arrival.Add(25 * time.Minute)
	archivedAt := arrival.Add(60 * time.Minute)
	notes := "walk-in"

	e := &Entry{
		TicketNumber: "C-004",
		ServicePoint: Cashier,
		Priority:     PriorityUrgent,
		Status:       StatusCompleted,
		ArrivalTime:  arrival,
		CalledTime:   &called,
		StartTime:    &start,
		EndTime:      &end,
		Notes:        &notes,
		CreatedBy:    "reception",
	}
	h := e.toHistory(archivedAt)

	if h.QueueID != e.ID {
		t.Error("queue id not carried over")
	}
	if h.TicketNumber != "C-004" || h.ServicePoint != Cashier || h.Priority != PriorityUrgent {
		t.Error("identity fields not carried over")
	}
	if h.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", h.Status)
	}
	if h.WaitTimeMinutes == nil || *h.WaitTimeMinutes != 5 {
		t.Errorf("wait = %v, want 5", h.WaitTimeMinutes)
	}
	if h.ServiceTimeMinutes == nil || *h.ServiceTimeMinutes != 17 {
		t.Errorf("service = %v, want 17", h.ServiceTimeMinutes)
	}
	if h.TotalTimeMinutes == nil || *h.TotalTimeMinutes != 25 {
		t.Errorf("total = %v, want 25", h.TotalTimeMinutes)
	}
	if h.Notes == nil || *h.Notes != "walk-in" {
		t.Error("notes not carried over")
	}
	if !h.ArchivedAt.Equal(archivedAt) {
		t.Error("archived_at not stamped")
	}
}

func TestMinutesBetween_ClampsNegative(t *testing.T) {
	later := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-5 * time.Minute)
	if m := minutesBetween(later, earlier); *m != 0 {
		t.Errorf("negative interval should clamp to 0, got %d", *m)
	}
}

func TestTicketPrefix(t *testing.T) {
	if got := Consultation.TicketPrefix(); got != "C" {
		t.Errorf("TicketPrefix = %s, want C", got)
	}
	if got := General.TicketPrefix(); got != "G" {
		t.Errorf("TicketPrefix = %s, want G", got)
	}
}
