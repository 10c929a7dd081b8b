package booking

import "github.com/marianoklecha/turnos-core/internal/turns"

// Next advances the wizard from step1 to step2. Guarded: a specialty and a
// doctor must already be chosen.
type Next struct{}

func (Next) EventType() string { return "turn.next" }

// Back returns the wizard from step2 to step1 keeping the draft.
type Back struct{}

func (Back) EventType() string { return "turn.back" }

// ResetTakeTurn wipes the booking draft and returns the wizard to step1.
// Idempotent.
type ResetTakeTurn struct{}

func (ResetTakeTurn) EventType() string { return "turn.reset_take_turn" }

// ResetShowTurns clears both turn-list filters.
type ResetShowTurns struct{}

func (ResetShowTurns) EventType() string { return "turn.reset_show_turns" }

// SetSpecialty selects the specialty filter, clearing the doctor and every
// downstream selection.
type SetSpecialty struct {
	Value string `json:"value"`
}

func (SetSpecialty) EventType() string { return "turn.set_specialty" }

// SetDoctor selects a doctor, clearing date, time, committed instant and
// the certificate flag.
type SetDoctor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (SetDoctor) EventType() string { return "turn.set_doctor" }

// SetDate selects a date, clearing time and the committed instant.
type SetDate struct {
	Value string `json:"value"`
}

func (SetDate) EventType() string { return "turn.set_date" }

// SetTime commits a slot: the chosen instant becomes the reservation key.
type SetTime struct {
	Value string `json:"value"`
}

func (SetTime) EventType() string { return "turn.set_time" }

// SetMotive sets the free-text visit motive.
type SetMotive struct {
	Value string `json:"value"`
}

func (SetMotive) EventType() string { return "turn.set_motive" }

// SetNeedsCertificate toggles the health-certificate visit. Accepted only
// for specialties that offer the certificate option.
type SetNeedsCertificate struct {
	Value bool `json:"value"`
}

func (SetNeedsCertificate) EventType() string { return "turn.set_needs_certificate" }

// SetShowTurnsDate sets the turn-list date filter.
type SetShowTurnsDate struct {
	Value string `json:"value"`
}

func (SetShowTurnsDate) EventType() string { return "turn.set_show_turns_date" }

// SetShowTurnsStatus sets the turn-list status filter.
type SetShowTurnsStatus struct {
	Value turns.Status `json:"value"`
}

func (SetShowTurnsStatus) EventType() string { return "turn.set_show_turns_status" }

// Navigate reports a route change. The modify region parses the turn id
// out of the destination's query string.
type Navigate struct {
	To string `json:"to"`
}

func (Navigate) EventType() string { return "turn.navigate" }

// SetModifyDate sets the reschedule draft's date.
type SetModifyDate struct {
	Value string `json:"value"`
}

func (SetModifyDate) EventType() string { return "turn.set_modify_date" }

// SetModifyTime sets the reschedule draft's time.
type SetModifyTime struct {
	Value string `json:"value"`
}

func (SetModifyTime) EventType() string { return "turn.set_modify_time" }

// LoadModifySlots asks the data gateway for slot availability on the
// reschedule draft's current doctor and date.
type LoadModifySlots struct{}

func (LoadModifySlots) EventType() string { return "turn.load_modify_slots" }

// SubmitModifyRequest files the reschedule request built from the draft.
type SubmitModifyRequest struct{}

func (SubmitModifyRequest) EventType() string { return "turn.submit_modify_request" }

// DataLoaded signals that the shared data layer refreshed; the data region
// re-derives its doctor, turn and identity slices from the gateway snapshot.
type DataLoaded struct{}

func (DataLoaded) EventType() string { return "turn.data_loaded" }

// CheckDoctorAvailability restarts the availability sweep.
type CheckDoctorAvailability struct{}

func (CheckDoctorAvailability) EventType() string { return "turn.check_doctor_availability" }

// CreateTurn books the draft. Guarded: a committed instant, a doctor and an
// identity must be present, and no data operation may be in flight.
type CreateTurn struct{}

func (CreateTurn) EventType() string { return "turn.create_turn" }

// CancelTurn cancels the identified turn.
type CancelTurn struct {
	TurnID string `json:"turnId"`
}

func (CancelTurn) EventType() string { return "turn.cancel_turn" }

// CompleteTurn marks the identified turn as completed.
type CompleteTurn struct {
	TurnID string `json:"turnId"`
}

func (CompleteTurn) EventType() string { return "turn.complete_turn" }

// NoShowTurn marks the identified turn as not attended.
type NoShowTurn struct {
	TurnID string `json:"turnId"`
}

func (NoShowTurn) EventType() string { return "turn.no_show_turn" }

// ClearCancelSuccess clears the transient action success message.
type ClearCancelSuccess struct{}

func (ClearCancelSuccess) EventType() string { return "turn.clear_cancel_success" }

// wizardDatesLoaded is the completion of the step2 date load.
type wizardDatesLoaded struct {
	epoch uint64
	dates []string
	err   error
}

func (wizardDatesLoaded) EventType() string { return "turn.wizard_dates_loaded" }

// availabilityResolved is the completion of the availability sweep.
type availabilityResolved struct {
	epoch        uint64
	availability map[string]bool
	err          error
}

func (availabilityResolved) EventType() string { return "turn.availability_resolved" }

// turnCreated is the completion of the booking request.
type turnCreated struct {
	epoch uint64
	turn  *turns.Turn
	err   error
}

func (turnCreated) EventType() string { return "turn.turn_created" }

// turnActionResolved is the completion of a cancel, complete or no-show
// request.
type turnActionResolved struct {
	epoch  uint64
	action turnAction
	err    error
}

func (turnActionResolved) EventType() string { return "turn.turn_action_resolved" }

// modifyDatesLoaded is the completion of the reschedule date load.
type modifyDatesLoaded struct {
	epoch uint64
	dates []string
	err   error
}

func (modifyDatesLoaded) EventType() string { return "turn.modify_dates_loaded" }

// modifySubmitted is the completion of the reschedule request.
type modifySubmitted struct {
	epoch uint64
	err   error
}

func (modifySubmitted) EventType() string { return "turn.modify_submitted" }
