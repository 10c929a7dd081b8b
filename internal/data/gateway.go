// Package data implements the shared data layer: the gateway fetches the
// doctor list, the caller's turns and the family roster through the service
// adapters, holds the latest snapshot behind a read lock, and signals the
// appointment machine after every refresh. Machines never fetch shared data
// themselves; they read the gateway's snapshot when told it changed.
package data

import (
	"context"
	"sync"
	"time"

	"github.com/marianoklecha/turnos-core/internal/booking"
	"github.com/marianoklecha/turnos-core/internal/family"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/turns"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

const fetchTimeout = 15 * time.Second

// TurnLister is the slice of the turn service the gateway fetches through.
type TurnLister interface {
	Doctors(ctx context.Context, accessToken string) ([]turns.Doctor, error)
	MyTurns(ctx context.Context, accessToken string) ([]turns.Turn, error)
	AvailableSlots(ctx context.Context, doctorID, date, accessToken string) ([]string, error)
}

// FamilyLister is the slice of the family service the gateway fetches
// through.
type FamilyLister interface {
	MyFamily(ctx context.Context, accessToken string) ([]family.Member, error)
}

// Dispatcher receives the DataLoaded signal after a refresh. Wired to the
// appointment machine at composition time.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev machine.Event) error
}

// Gateway implements booking.DataGateway and family.RosterReloader.
type Gateway struct {
	turns  TurnLister
	family FamilyLister
	logger *logging.Logger

	mu             sync.RWMutex
	accessToken    string
	userID         string
	doctors        []turns.Doctor
	myTurns        []turns.Turn
	familyMembers  []family.Member
	availableTurns []string

	machineMu sync.RWMutex
	machine   Dispatcher

	wg sync.WaitGroup
}

// NewGateway constructs the data layer. Attach the appointment machine with
// SetTurnMachine before the first refresh.
func NewGateway(turnsSvc TurnLister, familySvc FamilyLister, logger *logging.Logger) *Gateway {
	if turnsSvc == nil || familySvc == nil {
		panic("data: services required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		turns:  turnsSvc,
		family: familySvc,
		logger: logger.Named("data"),
	}
}

// SetTurnMachine attaches the DataLoaded receiver. Split from NewGateway
// because the machine needs the gateway at construction.
func (g *Gateway) SetTurnMachine(d Dispatcher) {
	g.machineMu.Lock()
	g.machine = d
	g.machineMu.Unlock()
}

// SetAuth records the caller's identity and triggers a full refresh.
func (g *Gateway) SetAuth(accessToken, userID string) {
	g.mu.Lock()
	g.accessToken = accessToken
	g.userID = userID
	g.mu.Unlock()
	g.Refresh()
}

// Logout drops the identity and every cached slice.
func (g *Gateway) Logout() {
	g.mu.Lock()
	g.accessToken = ""
	g.userID = ""
	g.doctors = nil
	g.myTurns = nil
	g.familyMembers = nil
	g.availableTurns = nil
	g.mu.Unlock()
	g.notifyLoaded()
}

// Snapshot implements booking.DataGateway. ok is false until an identity is
// known.
func (g *Gateway) Snapshot() (booking.DataSnapshot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.accessToken == "" {
		return booking.DataSnapshot{}, false
	}
	return booking.DataSnapshot{
		Doctors:        append([]turns.Doctor(nil), g.doctors...),
		MyTurns:        append([]turns.Turn(nil), g.myTurns...),
		AvailableTurns: append([]string(nil), g.availableTurns...),
		AccessToken:    g.accessToken,
		UserID:         g.userID,
	}, true
}

// FamilyMembers returns the cached roster for views.
func (g *Gateway) FamilyMembers() []family.Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]family.Member(nil), g.familyMembers...)
}

// Refresh fetches doctors, my turns and the family roster in the
// background, then signals the appointment machine.
func (g *Gateway) Refresh() {
	token, _ := g.identity()
	if token == "" {
		return
	}

	g.spawn(func(ctx context.Context) {
		doctors, err := g.turns.Doctors(ctx, token)
		if err != nil {
			g.logger.Warn("doctor list refresh failed", "error", err)
		} else {
			g.mu.Lock()
			g.doctors = doctors
			g.mu.Unlock()
		}

		myTurns, err := g.turns.MyTurns(ctx, token)
		if err != nil {
			g.logger.Warn("my turns refresh failed", "error", err)
		} else {
			g.mu.Lock()
			g.myTurns = myTurns
			g.mu.Unlock()
		}

		g.notifyLoaded()
	})
	g.ReloadFamily()
}

// ReloadMyTurns implements booking.DataGateway.
func (g *Gateway) ReloadMyTurns() {
	token, _ := g.identity()
	if token == "" {
		return
	}
	g.spawn(func(ctx context.Context) {
		myTurns, err := g.turns.MyTurns(ctx, token)
		if err != nil {
			g.logger.Warn("my turns reload failed", "error", err)
			return
		}
		g.mu.Lock()
		g.myTurns = myTurns
		g.mu.Unlock()
		g.notifyLoaded()
	})
}

// ReloadFamily implements family.RosterReloader.
func (g *Gateway) ReloadFamily() {
	token, _ := g.identity()
	if token == "" {
		return
	}
	g.spawn(func(ctx context.Context) {
		members, err := g.family.MyFamily(ctx, token)
		if err != nil {
			g.logger.Warn("family roster reload failed", "error", err)
			return
		}
		g.mu.Lock()
		g.familyMembers = members
		g.mu.Unlock()
	})
}

// LoadAvailableTurns implements booking.DataGateway: fetches the open slots
// for one doctor and date, then signals the machine.
func (g *Gateway) LoadAvailableTurns(doctorID, date string) {
	token, _ := g.identity()
	if token == "" || doctorID == "" || date == "" {
		return
	}
	g.spawn(func(ctx context.Context) {
		slots, err := g.turns.AvailableSlots(ctx, doctorID, date, token)
		if err != nil {
			g.logger.Warn("available slots load failed", "doctor_id", doctorID, "date", date, "error", err)
			return
		}
		g.mu.Lock()
		g.availableTurns = slots
		g.mu.Unlock()
		g.notifyLoaded()
	})
}

// Close waits for in-flight fetches.
func (g *Gateway) Close() {
	g.wg.Wait()
}

func (g *Gateway) identity() (string, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accessToken, g.userID
}

func (g *Gateway) spawn(fn func(ctx context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (g *Gateway) notifyLoaded() {
	g.machineMu.RLock()
	d := g.machine
	g.machineMu.RUnlock()
	if d == nil {
		return
	}
	if err := d.Dispatch(context.Background(), booking.DataLoaded{}); err != nil {
		g.logger.Debug("data loaded signal dropped", "error", err)
	}
}
