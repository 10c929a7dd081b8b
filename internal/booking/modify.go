package booking

import (
	"context"
	"net/url"
	"strings"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/internal/turns"
)

// Modify region states.
const (
	StateModifyIdle       = "idle"
	StateModifying        = "modifying"
	StateSubmittingModify = "submittingModifyRequest"
)

const (
	effectModifyDates  = "modifyDates"
	effectSubmitModify = "submitModify"
)

// ModifyTurnPath is the route the modify region reacts to.
const ModifyTurnPath = "/patient/modify-turn"

const (
	viewTurnsPath = "/patient/view-turns"

	incompleteModifyError = "Fecha y hora deben estar seleccionadas"
	fallbackModifyError   = "Error enviando solicitud de modificación"
)

// handleModify owns the reschedule-request flow.
func (m *Machine) handleModify(ev machine.Event) {
	switch e := ev.(type) {
	case Navigate:
		m.handleNavigate(e.To)
	case SetModifyDate:
		if m.modifyState != StateModifying {
			return
		}
		m.ctx.Modify.SelectedDate = e.Value
	case SetModifyTime:
		if m.modifyState != StateModifying {
			return
		}
		m.ctx.Modify.SelectedTime = e.Value
	case LoadModifySlots:
		m.requestModifySlots()
	case SubmitModifyRequest:
		if m.modifyState != StateModifying {
			return
		}
		m.submitModify()
	case modifyDatesLoaded:
		if m.runner.Stale(effectModifyDates, e.epoch) {
			return
		}
		if e.err != nil {
			m.ctx.Modify.AvailableDates = nil
			m.logger.Warn("modify dates load failed", "turn_id", m.ctx.Modify.TurnID, "error", e.err)
			return
		}
		m.ctx.Modify.AvailableDates = e.dates
	case modifySubmitted:
		if m.runner.Stale(effectSubmitModify, e.epoch) {
			// The user navigated away, but a submission that reached the
			// backend still changed the turn list.
			if e.err == nil {
				m.deps.Data.ReloadMyTurns()
			}
			return
		}
		m.modifyState = StateModifyIdle
		if e.err != nil {
			msg := backend.UserMessage(e.err, fallbackModifyError)
			m.ctx.ModifyError = msg
			m.logger.Warn("modify request failed", "turn_id", m.ctx.Modify.TurnID, "error", e.err)
			m.deps.UI.Toast(notify.SeverityError, msg)
			return
		}
		m.ctx.ModifyError = ""
		m.ctx.Modify = ModifyDraft{}
		m.runner.NextEpoch(effectModifyDates)
		m.deps.Data.ReloadMyTurns()
		m.deps.UI.Toast(notify.SeveritySuccess, "Solicitud de modificación enviada exitosamente")
		m.deps.UI.NavigateTo(viewTurnsPath)
	}
}

// handleNavigate re-parses the destination. Targeting the modify view
// re-seeds the draft through a forced pass over idle, so a second
// navigation while modifying restarts the flow instead of merging into it.
func (m *Machine) handleNavigate(to string) {
	turnID := parseModifyTarget(to)
	if turnID == "" {
		if m.modifyState == StateSubmittingModify {
			// The in-flight submission resolves against an expired epoch.
			m.runner.NextEpoch(effectSubmitModify)
		}
		m.runner.NextEpoch(effectModifyDates)
		m.modifyState = StateModifyIdle
		m.ctx.Modify = ModifyDraft{}
		m.ctx.ModifyError = ""
		return
	}

	m.modifyState = StateModifyIdle
	m.ctx.Modify = ModifyDraft{TurnID: turnID}
	m.ctx.ModifyError = ""

	if turn := findTurn(m.ctx.MyTurns, turnID); turn != nil {
		copied := *turn
		m.ctx.Modify.CurrentTurn = &copied
		m.ctx.Modify.SelectedDate = datePart(turn.ScheduledAt)
		m.ctx.Modify.SelectedTime = turn.ScheduledAt
	}

	m.modifyState = StateModifying
	m.enterModifying()
}

// enterModifying loads the doctor's open dates; an unknown doctor yields an
// empty list without a network call. A pre-seeded date immediately asks the
// data gateway for that day's slots.
func (m *Machine) enterModifying() {
	epoch := m.runner.NextEpoch(effectModifyDates)

	doctorID := ""
	if m.ctx.Modify.CurrentTurn != nil {
		doctorID = m.ctx.Modify.CurrentTurn.DoctorID
	}
	if doctorID == "" {
		m.ctx.Modify.AvailableDates = nil
		return
	}

	token := m.ctx.AccessToken
	m.runner.Invoke(effectModifyDates, func(ctx context.Context) machine.Event {
		dates, err := m.deps.Turns.AvailableDates(ctx, doctorID, token)
		return modifyDatesLoaded{epoch: epoch, dates: dates, err: err}
	})

	if m.ctx.Modify.SelectedDate != "" {
		m.deps.Data.LoadAvailableTurns(doctorID, m.ctx.Modify.SelectedDate)
	}
}

func (m *Machine) requestModifySlots() {
	if m.modifyState != StateModifying || m.ctx.Modify.CurrentTurn == nil {
		return
	}
	doctorID := m.ctx.Modify.CurrentTurn.DoctorID
	if doctorID == "" || m.ctx.Modify.SelectedDate == "" {
		return
	}
	m.deps.Data.LoadAvailableTurns(doctorID, m.ctx.Modify.SelectedDate)
}

// submitModify fails fast when date or time is missing: the error is
// recorded and no request is sent.
func (m *Machine) submitModify() {
	date := datePart(m.ctx.Modify.SelectedDate)
	tod := timePart(m.ctx.Modify.SelectedTime)
	if date == "" || tod == "" {
		m.ctx.ModifyError = incompleteModifyError
		return
	}

	m.modifyState = StateSubmittingModify
	m.ctx.ModifyError = ""

	req := turns.ModifyRequest{
		TurnID:         m.ctx.Modify.TurnID,
		NewScheduledAt: date + "T" + tod,
	}
	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectSubmitModify)

	m.runner.Invoke(effectSubmitModify, func(ctx context.Context) machine.Event {
		_, err := m.deps.Turns.CreateModifyRequest(ctx, req, token)
		return modifySubmitted{epoch: epoch, err: err}
	})
}

func parseModifyTarget(to string) string {
	u, err := url.Parse(to)
	if err != nil {
		return ""
	}
	if u.Path != ModifyTurnPath {
		return ""
	}
	return u.Query().Get("turnId")
}

func findTurn(all []turns.Turn, id string) *turns.Turn {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

// datePart keeps the calendar-day component of an instant or date string.
func datePart(s string) string {
	if i := strings.Index(s, "T"); i >= 0 {
		return s[:i]
	}
	return s
}

// timePart keeps the time-of-day component of an instant, or the whole
// string when it already is one.
func timePart(s string) string {
	if i := strings.Index(s, "T"); i >= 0 {
		return s[i+1:]
	}
	return s
}
