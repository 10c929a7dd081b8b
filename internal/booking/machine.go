package booking

import (
	"context"

	"github.com/marianoklecha/turnos-core/internal/bus"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/internal/turns"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// MachineID is the stable bus identifier of the appointment machine.
const MachineID = "turn"

// Region names, used as keys of the snapshot state map.
const (
	RegionTakeTurn       = "takeTurn"
	RegionShowTurns      = "showTurns"
	RegionModifyTurn     = "modifyTurn"
	RegionDataManagement = "dataManagement"
)

// TurnAPI is the slice of the turn backend the machine invokes.
type TurnAPI interface {
	AvailableDates(ctx context.Context, doctorID, accessToken string) ([]string, error)
	Create(ctx context.Context, req turns.CreateTurnRequest, accessToken string) (*turns.Turn, error)
	Cancel(ctx context.Context, turnID, accessToken string) error
	Complete(ctx context.Context, turnID, accessToken string) error
	NoShow(ctx context.Context, turnID, accessToken string) error
	CreateModifyRequest(ctx context.Context, req turns.ModifyRequest, accessToken string) (*turns.ModifyRequestRecord, error)
}

// AvailabilityChecker resolves which doctors have at least one open date.
type AvailabilityChecker interface {
	BuildAvailabilityMap(ctx context.Context, doctors []turns.Doctor, accessToken string) (map[string]bool, error)
}

// DataSnapshot is the read-only view the shared data layer supplies.
type DataSnapshot struct {
	Doctors        []turns.Doctor
	MyTurns        []turns.Turn
	AvailableTurns []string
	AccessToken    string
	UserID         string
}

// DataGateway is the typed handle to the shared data layer. Snapshot is
// fallible; callers degrade to an empty default when ok is false.
type DataGateway interface {
	Snapshot() (DataSnapshot, bool)
	ReloadMyTurns()
	LoadAvailableTurns(doctorID, date string)
}

// UserInterface is the typed handle to the view layer: toasts and route
// changes, injected at composition time.
type UserInterface interface {
	notify.Toaster
	notify.Navigator
}

// Deps are the collaborators the appointment machine is composed with.
type Deps struct {
	Turns        TurnAPI
	Availability AvailabilityChecker
	Data         DataGateway
	UI           UserInterface
}

// Machine is the parallel appointment machine. All four regions run on one
// event loop and share one context.
type Machine struct {
	runner *machine.Runner
	deps   Deps
	logger *logging.Logger

	wizardState string
	modifyState string
	dataState   string
	ctx         Context
}

// New wires and starts the appointment machine.
func New(deps Deps, logger *logging.Logger, opts ...machine.RunnerOption) *Machine {
	if deps.Turns == nil || deps.Availability == nil {
		panic("booking: turn API and availability checker required")
	}
	if deps.Data == nil || deps.UI == nil {
		panic("booking: data gateway and UI handles required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := &Machine{
		runner:      machine.NewRunner(MachineID, logger, opts...),
		deps:        deps,
		logger:      logger.Named("booking"),
		wizardState: StateStep1,
		modifyState: StateModifyIdle,
		dataState:   StateDataIdle,
	}
	m.runner.Start(m.handle)
	return m
}

// ID implements bus.Machine.
func (m *Machine) ID() string { return MachineID }

// Dispatch implements bus.Machine.
func (m *Machine) Dispatch(ctx context.Context, ev machine.Event) error {
	return m.runner.Dispatch(ctx, ev)
}

// Subscribe implements bus.Machine.
func (m *Machine) Subscribe() (<-chan struct{}, func()) {
	return m.runner.Subscribe()
}

// Snapshot implements bus.Machine. The state map carries one entry per
// region; the context is a deep copy.
func (m *Machine) Snapshot() bus.Snapshot {
	var snap bus.Snapshot
	m.runner.Read(func() {
		snap = bus.Snapshot{
			Machine: MachineID,
			States: map[string]string{
				RegionTakeTurn:       m.wizardState,
				RegionShowTurns:      StateFiltersIdle,
				RegionModifyTurn:     m.modifyState,
				RegionDataManagement: m.dataState,
			},
			Context: m.ctx.clone(),
		}
	})
	return snap
}

// Sync drains queued events; used by tests and shutdown.
func (m *Machine) Sync(ctx context.Context) error {
	return m.runner.Sync(ctx)
}

// Stop shuts the machine down.
func (m *Machine) Stop(ctx context.Context) error {
	return m.runner.Stop(ctx)
}

// handle offers each event to the global handlers and then to every region.
// Regions ignore events they do not own, so one dispatch may advance
// several regions at once.
func (m *Machine) handle(ev machine.Event) {
	if m.handleGlobal(ev) {
		return
	}
	m.handleWizard(ev)
	m.handleFilters(ev)
	m.handleModify(ev)
	m.handleData(ev)
}

func (m *Machine) handleGlobal(ev machine.Event) bool {
	switch ev.(type) {
	case ClearCancelSuccess:
		m.ctx.CancelSuccess = ""
		return true
	}
	return false
}
