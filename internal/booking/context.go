// Package booking implements the appointment machine: one parallel machine
// with four regions advancing over a shared context. The wizard region
// drives the two-step booking flow, the filters region holds the turn-list
// view filters, the modify region runs the reschedule-request flow, and the
// data region owns every network-backed operation (availability sweeps,
// creation, cancellation, completion, no-show).
//
// Each region writes only the context fields it owns. Cross-region effects
// (the availability sweep invalidating the wizard draft, turn creation
// resetting the wizard) are the documented exceptions and live in data.go.
package booking

import (
	"maps"
	"slices"

	"github.com/marianoklecha/turnos-core/internal/turns"
)

// TakeTurnDraft is the uncommitted booking being assembled by the wizard.
// ScheduledAt is the committed slot instant, empty until a time is chosen.
type TakeTurnDraft struct {
	ProfessionSelected     string `json:"professionSelected"`
	DoctorID               string `json:"doctorId"`
	ProfessionalSelected   string `json:"professionalSelected"`
	DateSelected           string `json:"dateSelected"`
	TimeSelected           string `json:"timeSelected"`
	ScheduledAt            string `json:"scheduledAt"`
	Motive                 string `json:"motive"`
	NeedsHealthCertificate bool   `json:"needsHealthCertificate"`
}

// ShowTurnsFilters are the turn-list view filters.
type ShowTurnsFilters struct {
	DateSelected string       `json:"dateSelected"`
	StatusFilter turns.Status `json:"statusFilter"`
}

// ModifyDraft is the in-progress reschedule request.
type ModifyDraft struct {
	TurnID         string      `json:"turnId"`
	CurrentTurn    *turns.Turn `json:"currentTurn"`
	SelectedDate   string      `json:"selectedDate"`
	SelectedTime   string      `json:"selectedTime"`
	AvailableDates []string    `json:"availableDates"`
	AvailableSlots []string    `json:"availableSlots"`
}

// Context is the machine-owned data shared by all four regions, exposed
// read-only through deep-copied snapshots.
type Context struct {
	AllDoctors         []turns.Doctor          `json:"allDoctors"`
	Doctors            []turns.Doctor          `json:"doctors"`
	Specialties        []turns.SpecialtyOption `json:"specialties"`
	DoctorAvailability map[string]bool         `json:"doctorAvailability"`
	AvailableDates     []string                `json:"availableDates"`
	AvailableTurns     []string                `json:"availableTurns"`
	MyTurns            []turns.Turn            `json:"myTurns"`
	VisibleTurns       []turns.Turn            `json:"visibleTurns"`

	TakeTurn  TakeTurnDraft    `json:"takeTurn"`
	ShowTurns ShowTurnsFilters `json:"showTurns"`
	Modify    ModifyDraft      `json:"modifyTurn"`

	IsLoadingDoctors        bool   `json:"isLoadingDoctors"`
	IsLoadingMyTurns        bool   `json:"isLoadingMyTurns"`
	IsLoadingAvailableDates bool   `json:"isLoadingAvailableDates"`
	IsCreatingTurn          bool   `json:"isCreatingTurn"`
	IsCancellingTurn        bool   `json:"isCancellingTurn"`
	CancellingTurnID        string `json:"cancellingTurnId"`

	Error         string `json:"error"`
	ModifyError   string `json:"modifyError"`
	CancelSuccess string `json:"cancelSuccess"`

	AccessToken string `json:"-"`
	UserID      string `json:"userId"`
}

// clone deep-copies the context so a snapshot is never aliased by later
// transitions.
func (c Context) clone() Context {
	out := c
	out.AllDoctors = slices.Clone(c.AllDoctors)
	out.Doctors = slices.Clone(c.Doctors)
	out.Specialties = slices.Clone(c.Specialties)
	out.DoctorAvailability = maps.Clone(c.DoctorAvailability)
	out.AvailableDates = slices.Clone(c.AvailableDates)
	out.AvailableTurns = slices.Clone(c.AvailableTurns)
	out.MyTurns = slices.Clone(c.MyTurns)
	out.VisibleTurns = slices.Clone(c.VisibleTurns)
	out.Modify.AvailableDates = slices.Clone(c.Modify.AvailableDates)
	out.Modify.AvailableSlots = slices.Clone(c.Modify.AvailableSlots)
	if c.Modify.CurrentTurn != nil {
		turn := *c.Modify.CurrentTurn
		out.Modify.CurrentTurn = &turn
	}
	return out
}
