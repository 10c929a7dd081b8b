package booking

import (
	"context"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/internal/turns"
)

// Data region states.
const (
	StateDataIdle             = "idle"
	StateCheckingAvailability = "checkingAvailability"
	StateCreatingTurn         = "creatingTurn"
	StateCancellingTurn       = "cancellingTurn"
	StateCompletingTurn       = "completingTurn"
	StateNoShowingTurn        = "noShowingTurn"
)

const (
	effectAvailability = "availability"
	effectCreateTurn   = "createTurn"
	effectTurnAction   = "turnAction"
)

const (
	fallbackAvailabilityError = "No se pudo obtener la disponibilidad de los doctores"
	fallbackCreateError       = "Error al crear el turno"

	patientHomePath = "/patient"
)

// turnAction distinguishes the three one-shot operations sharing the busy
// flag and target id.
type turnAction string

const (
	actionCancel   turnAction = "cancel"
	actionComplete turnAction = "complete"
	actionNoShow   turnAction = "noShow"
)

// handleData owns every network-backed operation of the machine.
func (m *Machine) handleData(ev machine.Event) {
	switch e := ev.(type) {
	case DataLoaded:
		if m.dataState != StateDataIdle && m.dataState != StateCheckingAvailability {
			return
		}
		m.applyDataSnapshot()
		if len(m.ctx.AllDoctors) > 0 {
			m.enterCheckingAvailability()
		}
	case CheckDoctorAvailability:
		// Re-entrant: a sweep already in flight is expired and restarted.
		if m.dataState != StateDataIdle && m.dataState != StateCheckingAvailability {
			return
		}
		m.enterCheckingAvailability()
	case CreateTurn:
		if !m.canCreateTurn() {
			m.logger.Debug("create turn guard rejected",
				"doctor_id", m.ctx.TakeTurn.DoctorID, "scheduled_at", m.ctx.TakeTurn.ScheduledAt)
			return
		}
		m.enterCreatingTurn()
	case CancelTurn:
		m.enterTurnAction(actionCancel, e.TurnID)
	case CompleteTurn:
		m.enterTurnAction(actionComplete, e.TurnID)
	case NoShowTurn:
		m.enterTurnAction(actionNoShow, e.TurnID)
	case availabilityResolved:
		m.applyAvailability(e)
	case turnCreated:
		m.applyTurnCreated(e)
	case turnActionResolved:
		m.applyTurnAction(e)
	}
}

// applyDataSnapshot re-derives the machine's doctor, turn and identity
// slices from the gateway. Doctors stay provisionally unfiltered for
// display until the availability sweep resolves.
func (m *Machine) applyDataSnapshot() {
	snap, ok := m.deps.Data.Snapshot()
	if !ok {
		m.logger.Debug("data gateway snapshot unavailable")
		return
	}

	m.ctx.AllDoctors = snap.Doctors
	m.ctx.Doctors = snap.Doctors
	m.ctx.Specialties = turns.BuildSpecialtyOptions(snap.Doctors)
	m.ctx.MyTurns = snap.MyTurns
	m.refreshVisibleTurns()
	m.ctx.AvailableTurns = snap.AvailableTurns
	m.ctx.Modify.AvailableSlots = snap.AvailableTurns
	m.ctx.AccessToken = snap.AccessToken
	m.ctx.UserID = snap.UserID
	m.ctx.IsLoadingMyTurns = false
}

func (m *Machine) enterCheckingAvailability() {
	m.dataState = StateCheckingAvailability
	m.ctx.IsLoadingDoctors = true

	doctors := append([]turns.Doctor(nil), m.ctx.AllDoctors...)
	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectAvailability)

	m.runner.Invoke(effectAvailability, func(ctx context.Context) machine.Event {
		availability, err := m.deps.Availability.BuildAvailabilityMap(ctx, doctors, token)
		return availabilityResolved{epoch: epoch, availability: availability, err: err}
	})
}

// applyAvailability filters the doctor list to those with open dates and
// reconciles the booking draft: a selected doctor or specialty that just
// dropped out of the filtered set is cleared along with everything derived
// from it.
func (m *Machine) applyAvailability(e availabilityResolved) {
	if m.runner.Stale(effectAvailability, e.epoch) {
		return
	}

	m.dataState = StateDataIdle
	m.ctx.IsLoadingDoctors = false

	if e.err != nil {
		m.logger.Warn("doctor availability sweep failed", "error", e.err)
		m.deps.UI.Toast(notify.SeverityError, fallbackAvailabilityError)
		return
	}

	m.ctx.DoctorAvailability = e.availability
	m.ctx.Doctors = turns.FilterAvailable(m.ctx.AllDoctors, e.availability)
	m.ctx.Specialties = turns.BuildSpecialtyOptions(m.ctx.Doctors)

	if m.ctx.TakeTurn.DoctorID != "" && !e.availability[m.ctx.TakeTurn.DoctorID] {
		m.logger.Info("selected doctor became unavailable, clearing booking draft",
			"doctor_id", m.ctx.TakeTurn.DoctorID)
		m.ctx.TakeTurn.ProfessionSelected = ""
		m.clearDoctorSelection()
		return
	}
	if m.ctx.TakeTurn.ProfessionSelected != "" && !m.specialtyOffered(m.ctx.TakeTurn.ProfessionSelected) {
		m.ctx.TakeTurn.ProfessionSelected = ""
		m.clearDoctorSelection()
	}
}

func (m *Machine) specialtyOffered(specialty string) bool {
	key := turns.NormalizeSpecialtyKey(specialty)
	for _, option := range m.ctx.Specialties {
		if turns.NormalizeSpecialtyKey(option.Value) == key {
			return true
		}
	}
	return false
}

func (m *Machine) canCreateTurn() bool {
	if m.dataState != StateDataIdle {
		return false
	}
	if m.ctx.AccessToken == "" || m.ctx.UserID == "" {
		return false
	}
	return m.ctx.TakeTurn.DoctorID != "" && m.ctx.TakeTurn.ScheduledAt != ""
}

func (m *Machine) enterCreatingTurn() {
	m.dataState = StateCreatingTurn
	m.ctx.IsCreatingTurn = true
	m.ctx.Error = ""

	req := turns.CreateTurnRequest{
		DoctorID:    m.ctx.TakeTurn.DoctorID,
		PatientID:   m.ctx.UserID,
		ScheduledAt: m.ctx.TakeTurn.ScheduledAt,
		Motive:      m.ctx.TakeTurn.Motive,
	}
	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectCreateTurn)

	m.runner.Invoke(effectCreateTurn, func(ctx context.Context) machine.Event {
		turn, err := m.deps.Turns.Create(ctx, req, token)
		return turnCreated{epoch: epoch, turn: turn, err: err}
	})
}

// applyTurnCreated: success clears the draft and resets the wizard; failure
// keeps the draft so the user can retry.
func (m *Machine) applyTurnCreated(e turnCreated) {
	if m.runner.Stale(effectCreateTurn, e.epoch) {
		return
	}

	m.dataState = StateDataIdle
	m.ctx.IsCreatingTurn = false

	if e.err != nil {
		msg := backend.UserMessage(e.err, fallbackCreateError)
		m.ctx.Error = msg
		m.logger.Warn("turn creation failed", "doctor_id", m.ctx.TakeTurn.DoctorID, "error", e.err)
		m.deps.UI.Toast(notify.SeverityError, msg)
		return
	}

	m.resetTakeTurn()
	m.deps.Data.ReloadMyTurns()
	m.deps.UI.Toast(notify.SeveritySuccess, "Turno creado exitosamente")
	m.deps.UI.NavigateTo(patientHomePath)
}

// enterTurnAction runs one of the cancel/complete/no-show operations. They
// share one busy flag and one target id, so a second action while one is
// outstanding is ignored. An availability sweep does not block them: the
// sweep is expired and the action takes over the region.
func (m *Machine) enterTurnAction(action turnAction, turnID string) {
	if (m.dataState != StateDataIdle && m.dataState != StateCheckingAvailability) || turnID == "" {
		m.logger.Debug("turn action rejected", "action", string(action), "turn_id", turnID)
		return
	}
	if m.dataState == StateCheckingAvailability {
		m.runner.NextEpoch(effectAvailability)
		m.ctx.IsLoadingDoctors = false
	}

	switch action {
	case actionCancel:
		m.dataState = StateCancellingTurn
	case actionComplete:
		m.dataState = StateCompletingTurn
	case actionNoShow:
		m.dataState = StateNoShowingTurn
	}
	m.ctx.IsCancellingTurn = true
	m.ctx.CancellingTurnID = turnID
	m.ctx.Error = ""

	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectTurnAction)

	m.runner.Invoke(effectTurnAction, func(ctx context.Context) machine.Event {
		var err error
		switch action {
		case actionCancel:
			err = m.deps.Turns.Cancel(ctx, turnID, token)
		case actionComplete:
			err = m.deps.Turns.Complete(ctx, turnID, token)
		case actionNoShow:
			err = m.deps.Turns.NoShow(ctx, turnID, token)
		}
		return turnActionResolved{epoch: epoch, action: action, err: err}
	})
}

func (m *Machine) applyTurnAction(e turnActionResolved) {
	if m.runner.Stale(effectTurnAction, e.epoch) {
		return
	}

	m.dataState = StateDataIdle
	m.ctx.IsCancellingTurn = false
	m.ctx.CancellingTurnID = ""

	var (
		successMsg   string
		successToast string
		severity     notify.Severity
		fallback     string
	)
	switch e.action {
	case actionCancel:
		successMsg = "Turno cancelado exitosamente"
		successToast = "Turno cancelado exitosamente"
		severity = notify.SeveritySuccess
		fallback = "Error al cancelar el turno"
	case actionComplete:
		successMsg = "Turno marcado como completado"
		successToast = "Turno marcado como completado exitosamente"
		severity = notify.SeveritySuccess
		fallback = "Error al completar el turno"
	case actionNoShow:
		successMsg = "Turno marcado como no asistió"
		successToast = "Turno marcado como no asistió exitosamente"
		severity = notify.SeverityInfo
		fallback = "Error al marcar el turno como no asistió"
	}

	if e.err != nil {
		msg := backend.UserMessage(e.err, fallback)
		m.ctx.Error = msg
		m.logger.Warn("turn action failed", "action", string(e.action), "error", e.err)
		m.deps.UI.Toast(notify.SeverityError, msg)
		return
	}

	m.ctx.CancelSuccess = successMsg
	m.deps.Data.ReloadMyTurns()
	m.deps.UI.Toast(severity, successToast)
}
