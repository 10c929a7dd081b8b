package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/internal/turns"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

type fakeTurnAPI struct {
	mu          sync.Mutex
	dates       map[string][]string
	datesErr    error
	createErr   error
	created     []turns.CreateTurnRequest
	actionErr   error
	actions     []string
	modifyErr   error
	modifyReqs  []turns.ModifyRequest
	actionBlock chan struct{}
	modifyBlock chan struct{}
}

func (f *fakeTurnAPI) AvailableDates(_ context.Context, doctorID, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.datesErr != nil {
		return nil, f.datesErr
	}
	return f.dates[doctorID], nil
}

func (f *fakeTurnAPI) Create(_ context.Context, req turns.CreateTurnRequest, _ string) (*turns.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &turns.Turn{ID: "t-new", DoctorID: req.DoctorID, ScheduledAt: req.ScheduledAt, Status: turns.StatusScheduled}, nil
}

func (f *fakeTurnAPI) Cancel(ctx context.Context, turnID, token string) error {
	return f.action(ctx, "cancel", turnID)
}

func (f *fakeTurnAPI) Complete(ctx context.Context, turnID, token string) error {
	return f.action(ctx, "complete", turnID)
}

func (f *fakeTurnAPI) NoShow(ctx context.Context, turnID, token string) error {
	return f.action(ctx, "noShow", turnID)
}

func (f *fakeTurnAPI) action(_ context.Context, name, turnID string) error {
	f.mu.Lock()
	block := f.actionBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, name+":"+turnID)
	return f.actionErr
}

func (f *fakeTurnAPI) CreateModifyRequest(_ context.Context, req turns.ModifyRequest, _ string) (*turns.ModifyRequestRecord, error) {
	f.mu.Lock()
	block := f.modifyBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyReqs = append(f.modifyReqs, req)
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	return &turns.ModifyRequestRecord{ID: "mr-1", TurnID: req.TurnID, NewScheduledAt: req.NewScheduledAt}, nil
}

func (f *fakeTurnAPI) createdReqs() []turns.CreateTurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]turns.CreateTurnRequest(nil), f.created...)
}

func (f *fakeTurnAPI) actionLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

func (f *fakeTurnAPI) modifyRequests() []turns.ModifyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]turns.ModifyRequest(nil), f.modifyReqs...)
}

type fakeChecker struct {
	mu           sync.Mutex
	availability map[string]bool
	err          error
	calls        int
	block        chan struct{}
}

func (f *fakeChecker) BuildAvailabilityMap(_ context.Context, _ []turns.Doctor, _ string) (map[string]bool, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool, len(f.availability))
	for k, v := range f.availability {
		out[k] = v
	}
	return out, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	snap      DataSnapshot
	ok        bool
	reloads   int
	slotLoads []string
}

func (f *fakeGateway) Snapshot() (DataSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.ok
}

func (f *fakeGateway) ReloadMyTurns() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
}

func (f *fakeGateway) LoadAvailableTurns(doctorID, date string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slotLoads = append(f.slotLoads, doctorID+"|"+date)
}

func (f *fakeGateway) stats() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads, append([]string(nil), f.slotLoads...)
}

type toast struct {
	severity notify.Severity
	message  string
}

type fakeUI struct {
	mu     sync.Mutex
	toasts []toast
	navs   []string
}

func (f *fakeUI) Toast(severity notify.Severity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast{severity: severity, message: message})
}

func (f *fakeUI) NavigateTo(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, path)
}

func (f *fakeUI) snapshot() ([]toast, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toast(nil), f.toasts...), append([]string(nil), f.navs...)
}

type env struct {
	api     *fakeTurnAPI
	checker *fakeChecker
	data    *fakeGateway
	ui      *fakeUI
	m       *Machine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		api:     &fakeTurnAPI{dates: map[string][]string{}},
		checker: &fakeChecker{availability: map[string]bool{}},
		data:    &fakeGateway{ok: true, snap: DataSnapshot{AccessToken: "tok", UserID: "pat-1"}},
		ui:      &fakeUI{},
	}
	e.m = New(Deps{Turns: e.api, Availability: e.checker, Data: e.data, UI: e.ui}, logging.Default())
	t.Cleanup(func() { _ = e.m.Stop(context.Background()) })
	return e
}

func (e *env) dispatch(t *testing.T, evs ...machine.Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, e.m.Dispatch(context.Background(), ev))
	}
	require.NoError(t, e.m.Sync(context.Background()))
}

func (e *env) wait(t *testing.T, cond func(Context, map[string]string) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := e.m.Snapshot()
		return cond(snap.Context.(Context), snap.States)
	}, time.Second, 5*time.Millisecond)
}

func bookingContext(m *Machine) Context {
	return m.Snapshot().Context.(Context)
}

// loadData seeds the gateway snapshot and runs the DataLoaded +
// availability sweep to completion.
func (e *env) loadData(t *testing.T, snap DataSnapshot) {
	t.Helper()
	e.data.mu.Lock()
	e.data.snap = snap
	e.data.ok = true
	e.data.mu.Unlock()

	e.dispatch(t, DataLoaded{})
	e.wait(t, func(ctx Context, states map[string]string) bool {
		return states[RegionDataManagement] == StateDataIdle && !ctx.IsLoadingDoctors
	})
}

func draftEvents() []machine.Event {
	return []machine.Event{
		SetSpecialty{Value: "general"},
		SetDoctor{ID: "d-1", Name: "Laura Paz"},
		SetDate{Value: "2026-09-01"},
		SetTime{Value: "2026-09-01T09:00:00"},
	}
}

func TestSetTimeCommitsInstant(t *testing.T) {
	e := newEnv(t)
	e.dispatch(t, draftEvents()...)

	ctx := bookingContext(e.m)
	assert.Equal(t, "2026-09-01T09:00:00", ctx.TakeTurn.TimeSelected)
	assert.Equal(t, "2026-09-01T09:00:00", ctx.TakeTurn.ScheduledAt)
}

func TestCascadeClearOnDoctorChange(t *testing.T) {
	e := newEnv(t)
	e.dispatch(t, draftEvents()...)
	e.dispatch(t, SetDoctor{ID: "d-2", Name: "Pedro Sosa"})

	ctx := bookingContext(e.m)
	assert.Equal(t, "d-2", ctx.TakeTurn.DoctorID)
	assert.Empty(t, ctx.TakeTurn.DateSelected)
	assert.Empty(t, ctx.TakeTurn.TimeSelected)
	assert.Empty(t, ctx.TakeTurn.ScheduledAt)
	assert.False(t, ctx.TakeTurn.NeedsHealthCertificate)
}

func TestCascadeClearOnDateChange(t *testing.T) {
	e := newEnv(t)
	e.dispatch(t, draftEvents()...)
	e.dispatch(t, SetDate{Value: "2026-09-02"})

	ctx := bookingContext(e.m)
	assert.Equal(t, "d-1", ctx.TakeTurn.DoctorID, "date change must not clear the doctor")
	assert.Equal(t, "2026-09-02", ctx.TakeTurn.DateSelected)
	assert.Empty(t, ctx.TakeTurn.TimeSelected)
	assert.Empty(t, ctx.TakeTurn.ScheduledAt)
}

func TestResetTakeTurnIdempotent(t *testing.T) {
	e := newEnv(t)
	e.dispatch(t, draftEvents()...)

	e.dispatch(t, ResetTakeTurn{})
	once := bookingContext(e.m).TakeTurn
	onceState := e.m.Snapshot().States[RegionTakeTurn]

	e.dispatch(t, ResetTakeTurn{})
	twice := bookingContext(e.m).TakeTurn

	assert.Equal(t, TakeTurnDraft{}, once)
	assert.Equal(t, once, twice)
	assert.Equal(t, StateStep1, onceState)
}

func TestWizardNextGuard(t *testing.T) {
	e := newEnv(t)

	e.dispatch(t, Next{})
	assert.Equal(t, StateStep1, e.m.Snapshot().States[RegionTakeTurn], "advance without doctor must be rejected")

	e.dispatch(t, SetSpecialty{Value: "general"})
	e.dispatch(t, Next{})
	assert.Equal(t, StateStep1, e.m.Snapshot().States[RegionTakeTurn], "advance without doctor must be rejected")

	e.api.mu.Lock()
	e.api.dates["d-1"] = []string{"2026-09-01", "2026-09-02"}
	e.api.mu.Unlock()

	e.dispatch(t, SetDoctor{ID: "d-1", Name: "Laura Paz"}, Next{})
	assert.Equal(t, StateStep2, e.m.Snapshot().States[RegionTakeTurn])

	e.wait(t, func(ctx Context, _ map[string]string) bool {
		return !ctx.IsLoadingAvailableDates && len(ctx.AvailableDates) == 2
	})

	e.dispatch(t, Back{})
	assert.Equal(t, StateStep1, e.m.Snapshot().States[RegionTakeTurn])
	assert.Equal(t, "d-1", bookingContext(e.m).TakeTurn.DoctorID, "going back keeps the draft")
}

func TestCertificateToggleOnlyForOfferedSpecialties(t *testing.T) {
	e := newEnv(t)

	e.dispatch(t, SetSpecialty{Value: "pediatría"}, SetNeedsCertificate{Value: true})
	assert.False(t, bookingContext(e.m).TakeTurn.NeedsHealthCertificate)

	e.dispatch(t, SetSpecialty{Value: "general"}, SetNeedsCertificate{Value: true})
	ctx := bookingContext(e.m)
	assert.True(t, ctx.TakeTurn.NeedsHealthCertificate)
	assert.Equal(t, turns.HealthCertificateMotive, ctx.TakeTurn.Motive)

	e.dispatch(t, SetNeedsCertificate{Value: false})
	ctx = bookingContext(e.m)
	assert.False(t, ctx.TakeTurn.NeedsHealthCertificate)
	assert.Empty(t, ctx.TakeTurn.Motive)
}

func TestShowTurnsFilters(t *testing.T) {
	e := newEnv(t)

	e.dispatch(t,
		SetShowTurnsDate{Value: "2026-09-01"},
		SetShowTurnsStatus{Value: turns.StatusScheduled},
	)
	ctx := bookingContext(e.m)
	assert.Equal(t, "2026-09-01", ctx.ShowTurns.DateSelected)
	assert.Equal(t, turns.StatusScheduled, ctx.ShowTurns.StatusFilter)

	e.dispatch(t, ResetShowTurns{})
	assert.Equal(t, ShowTurnsFilters{}, bookingContext(e.m).ShowTurns)
}

func TestStatusFilterShapesVisibleTurns(t *testing.T) {
	e := newEnv(t)
	e.loadData(t, DataSnapshot{
		MyTurns: []turns.Turn{
			{ID: "t-1", Status: turns.StatusScheduled},
			{ID: "t-2", Status: turns.StatusCancelled},
			{ID: "t-3", Status: turns.StatusScheduled},
		},
		AccessToken: "tok",
		UserID:      "pat-1",
	})

	ctx := bookingContext(e.m)
	assert.Len(t, ctx.VisibleTurns, 3, "no filter shows everything")

	e.dispatch(t, SetShowTurnsStatus{Value: turns.StatusScheduled})
	ctx = bookingContext(e.m)
	require.Len(t, ctx.VisibleTurns, 2)
	assert.Equal(t, "t-1", ctx.VisibleTurns[0].ID)
	assert.Equal(t, "t-3", ctx.VisibleTurns[1].ID)

	e.dispatch(t, ResetShowTurns{})
	assert.Len(t, bookingContext(e.m).VisibleTurns, 3)
}

func TestAvailabilityFiltering(t *testing.T) {
	e := newEnv(t)
	e.checker.mu.Lock()
	e.checker.availability = map[string]bool{"d-1": true, "d-2": false}
	e.checker.mu.Unlock()

	e.loadData(t, DataSnapshot{
		Doctors: []turns.Doctor{
			{ID: "d-1", Name: "Laura", Specialty: "general"},
			{ID: "d-2", Name: "Pedro", Specialty: "pediatría"},
		},
		AccessToken: "tok",
		UserID:      "pat-1",
	})

	ctx := bookingContext(e.m)
	require.Len(t, ctx.Doctors, 1)
	assert.Equal(t, "d-1", ctx.Doctors[0].ID)
	require.Len(t, ctx.Specialties, 1, "specialty options must derive from the filtered set")
	assert.Equal(t, "general", ctx.Specialties[0].Value)
	assert.Len(t, ctx.AllDoctors, 2)
}

func TestDraftInvalidationWhenDoctorFilteredOut(t *testing.T) {
	e := newEnv(t)
	e.dispatch(t, draftEvents()...)
	e.dispatch(t, SetNeedsCertificate{Value: true})

	e.checker.mu.Lock()
	e.checker.availability = map[string]bool{"d-1": false, "d-2": true}
	e.checker.mu.Unlock()

	e.loadData(t, DataSnapshot{
		Doctors: []turns.Doctor{
			{ID: "d-1", Specialty: "general"},
			{ID: "d-2", Specialty: "pediatría"},
		},
		AccessToken: "tok",
		UserID:      "pat-1",
	})

	ctx := bookingContext(e.m)
	assert.Empty(t, ctx.TakeTurn.DoctorID)
	assert.Empty(t, ctx.TakeTurn.ProfessionSelected)
	assert.Empty(t, ctx.TakeTurn.DateSelected)
	assert.Empty(t, ctx.TakeTurn.TimeSelected)
	assert.Empty(t, ctx.TakeTurn.ScheduledAt)
	assert.False(t, ctx.TakeTurn.NeedsHealthCertificate)
}

func TestAvailabilitySweepFailure(t *testing.T) {
	e := newEnv(t)
	e.checker.mu.Lock()
	e.checker.err = errors.New("context canceled")
	e.checker.mu.Unlock()

	e.loadData(t, DataSnapshot{
		Doctors:     []turns.Doctor{{ID: "d-1", Specialty: "general"}},
		AccessToken: "tok",
		UserID:      "pat-1",
	})

	toasts, _ := e.ui.snapshot()
	require.NotEmpty(t, toasts)
	assert.Equal(t, notify.SeverityError, toasts[len(toasts)-1].severity)
	assert.Equal(t, "No se pudo obtener la disponibilidad de los doctores", toasts[len(toasts)-1].message)
	assert.Len(t, bookingContext(e.m).Doctors, 1, "doctors stay unfiltered when the sweep fails")
}

func TestCreateTurnSuccess(t *testing.T) {
	e := newEnv(t)
	e.checker.mu.Lock()
	e.checker.availability = map[string]bool{"d-1": true}
	e.checker.mu.Unlock()
	e.loadData(t, DataSnapshot{
		Doctors:     []turns.Doctor{{ID: "d-1", Specialty: "general"}},
		AccessToken: "tok",
		UserID:      "pat-1",
	})

	e.dispatch(t, draftEvents()...)
	e.dispatch(t, SetMotive{Value: "Dolor de cabeza"})
	e.dispatch(t, CreateTurn{})

	e.wait(t, func(ctx Context, states map[string]string) bool {
		return states[RegionDataManagement] == StateDataIdle && !ctx.IsCreatingTurn
	})

	created := e.api.createdReqs()
	require.Len(t, created, 1)
	assert.Equal(t, turns.CreateTurnRequest{
		DoctorID:    "d-1",
		PatientID:   "pat-1",
		ScheduledAt: "2026-09-01T09:00:00",
		Motive:      "Dolor de cabeza",
	}, created[0])

	ctx := bookingContext(e.m)
	assert.Equal(t, TakeTurnDraft{}, ctx.TakeTurn, "draft cleared after booking")
	assert.Equal(t, StateStep1, e.m.Snapshot().States[RegionTakeTurn])
	assert.Empty(t, ctx.Error)

	reloads, _ := e.data.stats()
	assert.Equal(t, 1, reloads)
	toasts, navs := e.ui.snapshot()
	require.NotEmpty(t, toasts)
	assert.Equal(t, toast{severity: notify.SeveritySuccess, message: "Turno creado exitosamente"}, toasts[len(toasts)-1])
	assert.Equal(t, []string{"/patient"}, navs)
}

func TestCreateTurnGuard(t *testing.T) {
	e := newEnv(t)
	e.loadData(t, DataSnapshot{AccessToken: "tok", UserID: "pat-1"})

	// No committed instant yet.
	e.dispatch(t, SetSpecialty{Value: "general"}, SetDoctor{ID: "d-1", Name: "Laura"})
	e.dispatch(t, CreateTurn{})
	require.NoError(t, e.m.Sync(context.Background()))

	assert.Empty(t, e.api.createdReqs())
	assert.Equal(t, StateDataIdle, e.m.Snapshot().States[RegionDataManagement])
}

func TestCreateTurnFailureKeepsDraft(t *testing.T) {
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.createErr = &backend.Error{Status: 409, Message: "El horario ya no está disponible"}
	e.api.mu.Unlock()
	e.loadData(t, DataSnapshot{AccessToken: "tok", UserID: "pat-1"})

	e.dispatch(t, draftEvents()...)
	e.dispatch(t, CreateTurn{})

	e.wait(t, func(ctx Context, _ map[string]string) bool {
		return ctx.Error != ""
	})

	ctx := bookingContext(e.m)
	assert.Equal(t, "El horario ya no está disponible", ctx.Error)
	assert.Equal(t, "d-1", ctx.TakeTurn.DoctorID, "draft must survive a failed booking")
	assert.Equal(t, "2026-09-01T09:00:00", ctx.TakeTurn.ScheduledAt)

	toasts, navs := e.ui.snapshot()
	require.NotEmpty(t, toasts)
	assert.Equal(t, notify.SeverityError, toasts[len(toasts)-1].severity)
	assert.Empty(t, navs)
}

func TestTurnActions(t *testing.T) {
	cases := []struct {
		name     string
		event    machine.Event
		logged   string
		success  string
		toastMsg string
		severity notify.Severity
	}{
		{
			name:     "cancel",
			event:    CancelTurn{TurnID: "t-1"},
			logged:   "cancel:t-1",
			success:  "Turno cancelado exitosamente",
			toastMsg: "Turno cancelado exitosamente",
			severity: notify.SeveritySuccess,
		},
		{
			name:     "complete",
			event:    CompleteTurn{TurnID: "t-1"},
			logged:   "complete:t-1",
			success:  "Turno marcado como completado",
			toastMsg: "Turno marcado como completado exitosamente",
			severity: notify.SeveritySuccess,
		},
		{
			name:     "no show",
			event:    NoShowTurn{TurnID: "t-1"},
			logged:   "noShow:t-1",
			success:  "Turno marcado como no asistió",
			toastMsg: "Turno marcado como no asistió exitosamente",
			severity: notify.SeverityInfo,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			e.loadData(t, DataSnapshot{AccessToken: "tok", UserID: "pat-1"})

			e.dispatch(t, tc.event)
			e.wait(t, func(ctx Context, states map[string]string) bool {
				return states[RegionDataManagement] == StateDataIdle && !ctx.IsCancellingTurn
			})

			assert.Equal(t, []string{tc.logged}, e.api.actionLog())
			ctx := bookingContext(e.m)
			assert.Equal(t, tc.success, ctx.CancelSuccess)
			assert.Empty(t, ctx.CancellingTurnID)

			reloads, _ := e.data.stats()
			assert.Equal(t, 1, reloads)
			toasts, _ := e.ui.snapshot()
			require.NotEmpty(t, toasts)
			assert.Equal(t, toast{severity: tc.severity, message: tc.toastMsg}, toasts[len(toasts)-1])

			e.dispatch(t, ClearCancelSuccess{})
			assert.Empty(t, bookingContext(e.m).CancelSuccess)
		})
	}
}

func TestTurnActionFailure(t *testing.T) {
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.actionErr = errors.New("connection refused")
	e.api.mu.Unlock()
	e.loadData(t, DataSnapshot{AccessToken: "tok", UserID: "pat-1"})

	e.dispatch(t, CancelTurn{TurnID: "t-1"})
	e.wait(t, func(ctx Context, _ map[string]string) bool {
		return ctx.Error != ""
	})

	ctx := bookingContext(e.m)
	assert.Equal(t, "Error al cancelar el turno", ctx.Error)
	assert.Empty(t, ctx.CancelSuccess)
}

func TestSecondTurnActionWhileBusyIgnored(t *testing.T) {
	block := make(chan struct{})
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.actionBlock = block
	e.api.mu.Unlock()
	e.loadData(t, DataSnapshot{AccessToken: "tok", UserID: "pat-1"})

	e.dispatch(t, CancelTurn{TurnID: "t-1"})
	e.dispatch(t, CompleteTurn{TurnID: "t-2"})
	close(block)

	e.wait(t, func(ctx Context, states map[string]string) bool {
		return states[RegionDataManagement] == StateDataIdle
	})

	assert.Equal(t, []string{"cancel:t-1"}, e.api.actionLog(), "one action outstanding system-wide")
}

func TestTurnActionPreemptsAvailabilitySweep(t *testing.T) {
	sweep := make(chan struct{})
	e := newEnv(t)
	e.checker.mu.Lock()
	e.checker.block = sweep
	e.checker.mu.Unlock()
	e.data.mu.Lock()
	e.data.snap = DataSnapshot{
		Doctors:     []turns.Doctor{{ID: "d-1", Specialty: "general"}},
		AccessToken: "tok",
		UserID:      "pat-1",
	}
	e.data.mu.Unlock()

	e.dispatch(t, DataLoaded{})
	assert.Equal(t, StateCheckingAvailability, e.m.Snapshot().States[RegionDataManagement])

	e.dispatch(t, CancelTurn{TurnID: "t-1"})
	e.wait(t, func(ctx Context, states map[string]string) bool {
		return states[RegionDataManagement] == StateDataIdle && ctx.CancelSuccess != ""
	})
	assert.Equal(t, []string{"cancel:t-1"}, e.api.actionLog())

	// The preempted sweep resolves late and must be discarded.
	close(sweep)
	require.Eventually(t, func() bool {
		e.checker.mu.Lock()
		defer e.checker.mu.Unlock()
		return e.checker.calls == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, e.m.Sync(context.Background()))
	ctx := bookingContext(e.m)
	assert.Len(t, ctx.Doctors, 1, "stale sweep must not filter the doctor list")
	assert.False(t, ctx.IsLoadingDoctors)
}

func modifySeedSnapshot() DataSnapshot {
	return DataSnapshot{
		MyTurns: []turns.Turn{{
			ID:          "t-1",
			DoctorID:    "d-1",
			ScheduledAt: "2026-09-05T10:00:00",
			Status:      turns.StatusScheduled,
		}},
		AccessToken: "tok",
		UserID:      "pat-1",
	}
}

func TestNavigateSeedsModifyDraft(t *testing.T) {
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.dates["d-1"] = []string{"2026-09-05", "2026-09-06"}
	e.api.mu.Unlock()
	e.loadData(t, modifySeedSnapshot())

	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-1"})
	assert.Equal(t, StateModifying, e.m.Snapshot().States[RegionModifyTurn])

	e.wait(t, func(ctx Context, _ map[string]string) bool {
		return len(ctx.Modify.AvailableDates) == 2
	})

	ctx := bookingContext(e.m)
	assert.Equal(t, "t-1", ctx.Modify.TurnID)
	require.NotNil(t, ctx.Modify.CurrentTurn)
	assert.Equal(t, "2026-09-05", ctx.Modify.SelectedDate)
	assert.Equal(t, "2026-09-05T10:00:00", ctx.Modify.SelectedTime)

	_, slotLoads := e.data.stats()
	assert.Equal(t, []string{"d-1|2026-09-05"}, slotLoads, "pre-seeded date triggers a slot load")
}

func TestNavigateAwayClearsModifyDraft(t *testing.T) {
	e := newEnv(t)
	e.loadData(t, modifySeedSnapshot())

	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-1"})
	e.dispatch(t, Navigate{To: "/patient"})

	assert.Equal(t, StateModifyIdle, e.m.Snapshot().States[RegionModifyTurn])
	assert.Equal(t, ModifyDraft{}, bookingContext(e.m).Modify)
}

func TestLateModifySuccessStillReloadsTurns(t *testing.T) {
	block := make(chan struct{})
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.modifyBlock = block
	e.api.mu.Unlock()
	e.loadData(t, modifySeedSnapshot())

	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-1"})
	e.dispatch(t, SetModifyTime{Value: "2026-09-05T11:30:00"})
	e.dispatch(t, SubmitModifyRequest{})
	assert.Equal(t, StateSubmittingModify, e.m.Snapshot().States[RegionModifyTurn])

	e.dispatch(t, Navigate{To: "/patient"})
	assert.Equal(t, StateModifyIdle, e.m.Snapshot().States[RegionModifyTurn])
	reloadsBefore, _ := e.data.stats()
	toastsBefore, _ := e.ui.snapshot()

	close(block)
	require.Eventually(t, func() bool {
		reloads, _ := e.data.stats()
		return reloads == reloadsBefore+1
	}, time.Second, 5*time.Millisecond, "late success must refresh the turn list")

	require.NoError(t, e.m.Sync(context.Background()))
	toastsAfter, navs := e.ui.snapshot()
	assert.Equal(t, toastsBefore, toastsAfter, "no toast for a dismissed flow")
	assert.NotContains(t, navs, viewTurnsPath)
	assert.Equal(t, ModifyDraft{}, bookingContext(e.m).Modify)
}

func TestSubmitModifyMissingTimeFailsFast(t *testing.T) {
	e := newEnv(t)
	// Target turn unknown: no seed, date set by hand, no time.
	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-404"})
	e.dispatch(t, SetModifyDate{Value: "2026-09-05"})
	e.dispatch(t, SubmitModifyRequest{})

	ctx := bookingContext(e.m)
	assert.Equal(t, "Fecha y hora deben estar seleccionadas", ctx.ModifyError)
	assert.Empty(t, e.api.modifyRequests(), "incomplete draft must not reach the network")
	assert.Equal(t, StateModifying, e.m.Snapshot().States[RegionModifyTurn])
}

func TestSubmitModifySuccess(t *testing.T) {
	e := newEnv(t)
	e.loadData(t, modifySeedSnapshot())

	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-1"})
	e.dispatch(t, SetModifyTime{Value: "2026-09-05T11:30:00"})
	e.dispatch(t, SubmitModifyRequest{})

	e.wait(t, func(_ Context, states map[string]string) bool {
		return states[RegionModifyTurn] == StateModifyIdle
	})

	reqs := e.api.modifyRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, turns.ModifyRequest{TurnID: "t-1", NewScheduledAt: "2026-09-05T11:30:00"}, reqs[0])

	ctx := bookingContext(e.m)
	assert.Empty(t, ctx.ModifyError)
	assert.Equal(t, ModifyDraft{}, ctx.Modify)

	toasts, navs := e.ui.snapshot()
	require.NotEmpty(t, toasts)
	assert.Equal(t, toast{severity: notify.SeveritySuccess, message: "Solicitud de modificación enviada exitosamente"}, toasts[len(toasts)-1])
	assert.Contains(t, navs, "/patient/view-turns")
}

func TestSubmitModifyFailure(t *testing.T) {
	e := newEnv(t)
	e.api.mu.Lock()
	e.api.modifyErr = &backend.Error{Status: 422, Message: "El turno ya no puede modificarse"}
	e.api.mu.Unlock()
	e.loadData(t, modifySeedSnapshot())

	e.dispatch(t, Navigate{To: "/patient/modify-turn?turnId=t-1"})
	e.dispatch(t, SubmitModifyRequest{})

	e.wait(t, func(ctx Context, _ map[string]string) bool {
		return ctx.ModifyError != ""
	})

	ctx := bookingContext(e.m)
	assert.Equal(t, "El turno ya no puede modificarse", ctx.ModifyError)
	assert.Equal(t, StateModifyIdle, e.m.Snapshot().States[RegionModifyTurn])
}

func TestSnapshotIsolation(t *testing.T) {
	e := newEnv(t)
	e.loadData(t, modifySeedSnapshot())
	e.dispatch(t, draftEvents()...)

	before := bookingContext(e.m)
	require.Len(t, before.MyTurns, 1)

	e.dispatch(t, SetDate{Value: "2026-12-01"}, Navigate{To: "/patient/modify-turn?turnId=t-1"})

	assert.Equal(t, "2026-09-01", before.TakeTurn.DateSelected, "prior snapshot must not see later writes")
	assert.Empty(t, before.Modify.TurnID)
	assert.Equal(t, turns.StatusScheduled, before.MyTurns[0].Status)
}

func TestDataSnapshotUnavailableDegrades(t *testing.T) {
	e := newEnv(t)
	e.data.mu.Lock()
	e.data.ok = false
	e.data.mu.Unlock()

	e.dispatch(t, DataLoaded{})

	ctx := bookingContext(e.m)
	assert.Empty(t, ctx.AllDoctors)
	assert.Equal(t, StateDataIdle, e.m.Snapshot().States[RegionDataManagement])
	assert.Equal(t, 0, func() int { e.checker.mu.Lock(); defer e.checker.mu.Unlock(); return e.checker.calls }())
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent("turn.set_doctor", []byte(`{"id":"d-1","name":"Laura Paz"}`))
	require.NoError(t, err)
	assert.Equal(t, SetDoctor{ID: "d-1", Name: "Laura Paz"}, ev)

	ev, err = DecodeEvent("turn.cancel_turn", []byte(`{"turnId":"t-9"}`))
	require.NoError(t, err)
	assert.Equal(t, CancelTurn{TurnID: "t-9"}, ev)

	ev, err = DecodeEvent("turn.next", nil)
	require.NoError(t, err)
	assert.Equal(t, Next{}, ev)

	_, err = DecodeEvent("turn.turn_created", nil)
	require.Error(t, err, "effect completions are not wire-decodable")

	_, err = DecodeEvent("bogus", nil)
	require.Error(t, err)
}

func TestMotiveClampedToMaxLength(t *testing.T) {
	e := newEnv(t)
	long := ""
	for i := 0; i < 60; i++ {
		long += fmt.Sprintf("motivo %d ", i)
	}
	e.dispatch(t, SetMotive{Value: long})

	got := bookingContext(e.m).TakeTurn.Motive
	assert.LessOrEqual(t, len([]rune(got)), 500)
}
