package family

import (
	"context"
	"maps"

	"github.com/marianoklecha/turnos-core/internal/backend"
	"github.com/marianoklecha/turnos-core/internal/bus"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// MachineID is the stable bus identifier of the family machine.
const MachineID = "family"

// State names of the family machine.
const (
	StateIdle   = "idle"
	StateSaving = "savingFamilyMember"
)

const effectSave = "save"

const fallbackSaveError = "Error al guardar el familiar"

// Context is the machine-owned data, exposed read-only through snapshots.
type Context struct {
	Member          *Member           `json:"member"`
	EditingMemberID string            `json:"editingMemberId"`
	Loading         bool              `json:"loading"`
	Error           string            `json:"error"`
	AccessToken     string            `json:"-"`
	UserID          string            `json:"userId"`
	Form            FormValues        `json:"formValues"`
	FormErrors      map[string]string `json:"formErrors"`
}

// ServiceAPI is the slice of the family backend the machine invokes.
type ServiceAPI interface {
	CreateMember(ctx context.Context, req CreateRequest, accessToken string) (*Member, error)
	UpdateMember(ctx context.Context, id string, req CreateRequest, accessToken string) (*Member, error)
}

// RosterReloader refreshes the shared family roster after a save and
// drops every cached slice on logout.
type RosterReloader interface {
	ReloadFamily()
	Logout()
}

// PanelUI collapses the creation panel and shows toasts. Injected as a
// typed handle at composition time.
type PanelUI interface {
	notify.Toaster
	ToggleCreatePanel()
}

// Machine manages the create/edit form for dependents.
type Machine struct {
	runner *machine.Runner
	svc    ServiceAPI
	data   RosterReloader
	ui     PanelUI
	logger *logging.Logger

	state string
	ctx   Context
}

// New wires and starts the family machine.
func New(svc ServiceAPI, data RosterReloader, ui PanelUI, logger *logging.Logger, opts ...machine.RunnerOption) *Machine {
	if svc == nil {
		panic("family: service required")
	}
	if data == nil || ui == nil {
		panic("family: sibling handles required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := &Machine{
		runner: machine.NewRunner(MachineID, logger, opts...),
		svc:    svc,
		data:   data,
		ui:     ui,
		logger: logger.Named("family"),
		state:  StateIdle,
		ctx:    Context{FormErrors: map[string]string{}},
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

// Snapshot implements bus.Machine. The returned context is a deep copy.
func (m *Machine) Snapshot() bus.Snapshot {
	var snap bus.Snapshot
	m.runner.Read(func() {
		snap = bus.Snapshot{
			Machine: MachineID,
			States:  map[string]string{MachineID: m.state},
			Context: m.cloneContext(),
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

func (m *Machine) handle(ev machine.Event) {
	switch m.state {
	case StateIdle:
		m.handleIdle(ev)
	case StateSaving:
		m.handleSaving(ev)
	}
}

func (m *Machine) handleIdle(ev machine.Event) {
	switch e := ev.(type) {
	case SetAuth:
		m.ctx.AccessToken = e.AccessToken
		m.ctx.UserID = e.UserID
	case Logout:
		m.ctx = Context{FormErrors: map[string]string{}}
		m.data.Logout()
	case UpdateField:
		m.ctx.Form.SetField(e.Key, e.Value)
		m.ctx.FormErrors[e.Key] = ValidateField(e.Key, e.Value)
	case SetEditMember:
		// Seeded values are presumed valid and not re-validated; the form
		// shows no error until the user touches a field.
		m.ctx.EditingMemberID = e.Member.ID
		m.ctx.Member = &e.Member
		m.ctx.Form = formFromMember(e.Member)
		m.ctx.FormErrors = map[string]string{}
	case CancelEdit:
		m.ctx.EditingMemberID = ""
		m.ctx.Form = FormValues{}
		m.ctx.FormErrors = map[string]string{}
	case CancelFieldEdit:
		if m.ctx.Member == nil {
			return
		}
		m.ctx.Form.SetField(e.Key, formFromMember(*m.ctx.Member).Field(e.Key))
		m.ctx.FormErrors[e.Key] = ""
	case ClearError:
		m.ctx.Error = ""
	case Save:
		if !m.canSave() {
			m.logger.Debug("save guard rejected", "editing_id", m.ctx.EditingMemberID)
			return
		}
		m.enterSaving()
	}
}

func (m *Machine) handleSaving(ev machine.Event) {
	e, ok := ev.(saveResolved)
	if !ok {
		// The state has left idle; a second Save (or any edit) while a
		// request is in flight is ignored.
		m.logger.Debug("event ignored while saving", "event", ev.EventType())
		return
	}
	if m.runner.Stale(effectSave, e.epoch) {
		return
	}

	m.ctx.Loading = false
	m.state = StateIdle

	if e.err != nil {
		msg := backend.UserMessage(e.err, fallbackSaveError)
		m.ctx.Error = msg
		m.logger.Warn("family member save failed", "error", e.err)
		m.ui.Toast(notify.SeverityError, msg)
		return
	}

	m.ctx.Member = e.member
	m.ctx.EditingMemberID = ""
	m.ctx.Form = FormValues{}
	m.ctx.FormErrors = map[string]string{}

	m.data.ReloadFamily()
	m.ui.ToggleCreatePanel()
	m.ui.Toast(notify.SeveritySuccess, "Familiar guardado correctamente")
}

// canSave gates the save transition: identity present, no field errors, all
// six fields filled. A failed guard is a silent no-op.
func (m *Machine) canSave() bool {
	if m.ctx.AccessToken == "" || m.ctx.UserID == "" {
		return false
	}
	for _, msg := range m.ctx.FormErrors {
		if msg != "" {
			return false
		}
	}
	return m.ctx.Form.Complete()
}

func (m *Machine) enterSaving() {
	m.state = StateSaving
	m.ctx.Loading = true
	m.ctx.Error = ""

	req := CreateRequest{
		HolderID:     m.ctx.UserID,
		Name:         m.ctx.Form.Name,
		Surname:      m.ctx.Form.Surname,
		Birthdate:    m.ctx.Form.Birthdate,
		Gender:       m.ctx.Form.Gender,
		DNI:          m.ctx.Form.DNI,
		Relationship: m.ctx.Form.Relationship,
	}
	editingID := m.ctx.EditingMemberID
	token := m.ctx.AccessToken
	epoch := m.runner.NextEpoch(effectSave)

	m.runner.Invoke(effectSave, func(ctx context.Context) machine.Event {
		var (
			member *Member
			err    error
		)
		if editingID != "" {
			member, err = m.svc.UpdateMember(ctx, editingID, req, token)
		} else {
			member, err = m.svc.CreateMember(ctx, req, token)
		}
		return saveResolved{epoch: epoch, member: member, err: err}
	})
}

func (m *Machine) cloneContext() Context {
	out := m.ctx
	out.FormErrors = maps.Clone(m.ctx.FormErrors)
	if m.ctx.Member != nil {
		member := *m.ctx.Member
		out.Member = &member
	}
	return out
}
