package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hmis/hmis/internal/platform/events"
)

// Subscriber listens for patient registration events and opens a triage
// queue entry for each newly registered patient. Running this off the event
// stream keeps registration itself fast and means a failed triage insert
// never rolls back the registration.
type Subscriber struct {
	svc    *Service
	bus    *events.Bus
	logger zerolog.Logger
}

func NewSubscriber(svc *Service, bus *events.Bus, logger zerolog.Logger) *Subscriber {
	return &Subscriber{svc: svc, bus: bus, logger: logger.With().Str("component", "queue_subscriber").Logger()}
}

// Run consumes patient events until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	ch := s.bus.Subscribe(ctx, events.ChannelPatient)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, ev events.Event) {
	if ev.Type != events.TypePatientRegistered {
		return
	}
	patientID, err := uuid.Parse(ev.Data["patient_id"])
	if err != nil {
		s.logger.Warn().Str("event_id", ev.ID).Msg("patient event without valid patient_id")
		return
	}

	entry, err := s.svc.Create(ctx, CreateRequest{
		PatientID:    patientID,
		ServicePoint: Triage,
		Priority:     PriorityNormal,
		CreatedBy:    "system",
	})
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("auto triage enqueue failed")
		return
	}
	if entry.Duplicate {
		return
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("ticket", entry.TicketNumber).
		Msg("patient auto-enqueued to triage")
}
