package turns

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

var turnsTracer = otel.Tracer("turnos.internal.turns")

// Service wraps the turn endpoints of the backend API.
type Service struct {
	api    *backend.Client
	logger *logging.Logger
}

// NewService constructs a turn service adapter.
func NewService(api *backend.Client, logger *logging.Logger) *Service {
	if api == nil {
		panic("turns: backend client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, logger: logger.Named("turns.service")}
}

// AvailableDates returns the ordered open dates for a doctor.
func (s *Service) AvailableDates(ctx context.Context, doctorID, accessToken string) ([]string, error) {
	ctx, span := turnsTracer.Start(ctx, "turns.available_dates")
	defer span.End()
	span.SetAttributes(attribute.String("turnos.doctor_id", doctorID))

	path := "/turns/available-dates?doctorId=" + url.QueryEscape(doctorID)
	var out []string
	if err := s.api.DoJSON(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get available dates: %w", err)
	}
	return out, nil
}

// AvailableSlots returns the ordered open slot instants for a doctor on a
// date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID, date, accessToken string) ([]string, error) {
	ctx, span := turnsTracer.Start(ctx, "turns.available_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("turnos.doctor_id", doctorID),
		attribute.String("turnos.date", date),
	)

	q := url.Values{}
	q.Set("doctorId", doctorID)
	q.Set("date", date)
	var out []string
	if err := s.api.DoJSON(ctx, http.MethodGet, "/turns/available-slots?"+q.Encode(), accessToken, nil, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get available slots: %w", err)
	}
	return out, nil
}

// Create books a turn.
func (s *Service) Create(ctx context.Context, req CreateTurnRequest, accessToken string) (*Turn, error) {
	ctx, span := turnsTracer.Start(ctx, "turns.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("turnos.doctor_id", req.DoctorID),
		attribute.String("turnos.scheduled_at", req.ScheduledAt),
	)

	var out Turn
	if err := s.api.DoJSON(ctx, http.MethodPost, "/turns", accessToken, req, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create turn: %w", err)
	}
	s.logger.Info("turn created", "turn_id", out.ID, "doctor_id", req.DoctorID)
	return &out, nil
}

// Cancel cancels a turn.
func (s *Service) Cancel(ctx context.Context, turnID, accessToken string) error {
	return s.turnAction(ctx, "cancel", turnID, accessToken)
}

// Complete marks a turn as completed.
func (s *Service) Complete(ctx context.Context, turnID, accessToken string) error {
	return s.turnAction(ctx, "complete", turnID, accessToken)
}

// NoShow marks a turn as not attended.
func (s *Service) NoShow(ctx context.Context, turnID, accessToken string) error {
	return s.turnAction(ctx, "no-show", turnID, accessToken)
}

// CreateModifyRequest files a reschedule request for an existing turn.
func (s *Service) CreateModifyRequest(ctx context.Context, req ModifyRequest, accessToken string) (*ModifyRequestRecord, error) {
	ctx, span := turnsTracer.Start(ctx, "turns.create_modify_request")
	defer span.End()
	span.SetAttributes(attribute.String("turnos.turn_id", req.TurnID))

	var out ModifyRequestRecord
	if err := s.api.DoJSON(ctx, http.MethodPost, "/turn-modify-requests", accessToken, req, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create modify request: %w", err)
	}
	return &out, nil
}

// MyTurns lists the caller's turns.
func (s *Service) MyTurns(ctx context.Context, accessToken string) ([]Turn, error) {
	var out []Turn
	if err := s.api.DoJSON(ctx, http.MethodGet, "/turns/mine", accessToken, nil, &out); err != nil {
		return nil, fmt.Errorf("get my turns: %w", err)
	}
	return out, nil
}

// Doctors lists the bookable doctors.
func (s *Service) Doctors(ctx context.Context, accessToken string) ([]Doctor, error) {
	var out []Doctor
	if err := s.api.DoJSON(ctx, http.MethodGet, "/doctors", accessToken, nil, &out); err != nil {
		return nil, fmt.Errorf("get doctors: %w", err)
	}
	return out, nil
}

func (s *Service) turnAction(ctx context.Context, action, turnID, accessToken string) error {
	ctx, span := turnsTracer.Start(ctx, "turns."+action)
	defer span.End()
	span.SetAttributes(attribute.String("turnos.turn_id", turnID))

	path := fmt.Sprintf("/turns/%s/%s", url.PathEscape(turnID), action)
	if err := s.api.DoJSON(ctx, http.MethodPost, path, accessToken, nil, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s turn: %w", action, err)
	}
	return nil
}
