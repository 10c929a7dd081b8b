package booking

import (
	"context"
	"unicode/utf8"

	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/turns"
)

// Wizard region states.
const (
	StateStep1 = "step1"
	StateStep2 = "step2"
)

const effectWizardDates = "wizardDates"

const motiveMaxLen = 500

const fallbackDatesError = "Failed to load available dates"

// handleWizard owns the booking draft and the two-step flow. The setters
// are accepted in both steps; cascades keep downstream selections
// consistent with what they were derived from.
func (m *Machine) handleWizard(ev machine.Event) {
	switch e := ev.(type) {
	case SetSpecialty:
		if m.ctx.TakeTurn.ProfessionSelected == e.Value {
			return
		}
		m.ctx.TakeTurn.ProfessionSelected = e.Value
		m.clearDoctorSelection()
	case SetDoctor:
		if m.ctx.TakeTurn.DoctorID == e.ID {
			return
		}
		m.ctx.TakeTurn.DoctorID = e.ID
		m.ctx.TakeTurn.ProfessionalSelected = e.Name
		m.clearSlotSelection()
		m.ctx.TakeTurn.NeedsHealthCertificate = false
		m.clearCertificateMotive()
		if m.wizardState == StateStep2 {
			m.enterStep2()
		}
	case SetDate:
		m.ctx.TakeTurn.DateSelected = e.Value
		m.ctx.TakeTurn.TimeSelected = ""
		m.ctx.TakeTurn.ScheduledAt = ""
	case SetTime:
		// The slot instant is the reservation key.
		m.ctx.TakeTurn.TimeSelected = e.Value
		m.ctx.TakeTurn.ScheduledAt = e.Value
	case SetMotive:
		m.ctx.TakeTurn.Motive = clampRunes(e.Value, motiveMaxLen)
	case SetNeedsCertificate:
		if !turns.AllowsHealthCertificate(m.ctx.TakeTurn.ProfessionSelected) {
			m.logger.Debug("certificate toggle rejected for specialty",
				"specialty", m.ctx.TakeTurn.ProfessionSelected)
			return
		}
		m.ctx.TakeTurn.NeedsHealthCertificate = e.Value
		if e.Value {
			m.ctx.TakeTurn.Motive = turns.HealthCertificateMotive
		} else {
			m.clearCertificateMotive()
		}
	case Next:
		if m.wizardState != StateStep1 {
			return
		}
		if m.ctx.TakeTurn.ProfessionSelected == "" || m.ctx.TakeTurn.DoctorID == "" {
			m.logger.Debug("wizard advance guard rejected")
			return
		}
		m.wizardState = StateStep2
		m.enterStep2()
	case Back:
		if m.wizardState != StateStep2 {
			return
		}
		m.wizardState = StateStep1
	case ResetTakeTurn:
		m.resetTakeTurn()
	case wizardDatesLoaded:
		if m.runner.Stale(effectWizardDates, e.epoch) {
			return
		}
		m.ctx.IsLoadingAvailableDates = false
		if e.err != nil {
			m.ctx.AvailableDates = nil
			m.ctx.Error = fallbackDatesError
			m.logger.Warn("available dates load failed", "error", e.err)
			return
		}
		m.ctx.AvailableDates = e.dates
	}
}

// resetTakeTurn is also triggered by the data region after a successful
// booking.
func (m *Machine) resetTakeTurn() {
	m.wizardState = StateStep1
	m.ctx.TakeTurn = TakeTurnDraft{}
	m.ctx.AvailableDates = nil
	m.ctx.IsLoadingAvailableDates = false
	m.runner.NextEpoch(effectWizardDates)
}

func (m *Machine) clearDoctorSelection() {
	m.ctx.TakeTurn.DoctorID = ""
	m.ctx.TakeTurn.ProfessionalSelected = ""
	m.clearSlotSelection()
	m.ctx.TakeTurn.NeedsHealthCertificate = false
	m.clearCertificateMotive()
}

func (m *Machine) clearSlotSelection() {
	m.ctx.TakeTurn.DateSelected = ""
	m.ctx.TakeTurn.TimeSelected = ""
	m.ctx.TakeTurn.ScheduledAt = ""
	m.ctx.AvailableDates = nil
	m.runner.NextEpoch(effectWizardDates)
}

func (m *Machine) clearCertificateMotive() {
	if m.ctx.TakeTurn.Motive == turns.HealthCertificateMotive {
		m.ctx.TakeTurn.Motive = ""
	}
}

func (m *Machine) enterStep2() {
	m.ctx.IsLoadingAvailableDates = true
	doctorID := m.ctx.TakeTurn.DoctorID
	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectWizardDates)

	m.runner.Invoke(effectWizardDates, func(ctx context.Context) machine.Event {
		dates, err := m.deps.Turns.AvailableDates(ctx, doctorID, token)
		return wizardDatesLoaded{epoch: epoch, dates: dates, err: err}
	})
}

func clampRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
