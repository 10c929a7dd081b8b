package data

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianoklecha/turnos-core/internal/family"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/turns"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

type fakeTurnLister struct {
	mu      sync.Mutex
	doctors []turns.Doctor
	myTurns []turns.Turn
	slots   []string
	err     error
}

func (f *fakeTurnLister) Doctors(context.Context, string) ([]turns.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doctors, f.err
}

func (f *fakeTurnLister) MyTurns(context.Context, string) ([]turns.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.myTurns, f.err
}

func (f *fakeTurnLister) AvailableSlots(context.Context, string, string, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots, f.err
}

type fakeFamilyLister struct {
	mu      sync.Mutex
	members []family.Member
	err     error
}

func (f *fakeFamilyLister) MyFamily(context.Context, string) ([]family.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members, f.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []machine.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev machine.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestGateway(t *testing.T) (*Gateway, *fakeTurnLister, *fakeFamilyLister, *fakeDispatcher) {
	t.Helper()
	tl := &fakeTurnLister{}
	fl := &fakeFamilyLister{}
	d := &fakeDispatcher{}
	g := NewGateway(tl, fl, logging.Default())
	g.SetTurnMachine(d)
	t.Cleanup(g.Close)
	return g, tl, fl, d
}

func TestSnapshotRequiresIdentity(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	_, ok := g.Snapshot()
	assert.False(t, ok)
}

func TestSetAuthRefreshesAndSignals(t *testing.T) {
	g, tl, fl, d := newTestGateway(t)
	tl.mu.Lock()
	tl.doctors = []turns.Doctor{{ID: "d-1", Specialty: "general"}}
	tl.myTurns = []turns.Turn{{ID: "t-1"}}
	tl.mu.Unlock()
	fl.mu.Lock()
	fl.members = []family.Member{{ID: "fm-1"}}
	fl.mu.Unlock()

	g.SetAuth("tok", "pat-1")

	require.Eventually(t, func() bool {
		snap, ok := g.Snapshot()
		return ok && len(snap.Doctors) == 1 && len(snap.MyTurns) == 1 && len(g.FamilyMembers()) == 1
	}, time.Second, 5*time.Millisecond)

	snap, ok := g.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "tok", snap.AccessToken)
	assert.Equal(t, "pat-1", snap.UserID)
	assert.GreaterOrEqual(t, d.count(), 1)
}

func TestReloadMyTurns(t *testing.T) {
	g, tl, _, d := newTestGateway(t)
	g.SetAuth("tok", "pat-1")

	require.Eventually(t, func() bool { return d.count() >= 1 }, time.Second, 5*time.Millisecond)

	tl.mu.Lock()
	tl.myTurns = []turns.Turn{{ID: "t-1"}, {ID: "t-2"}}
	tl.mu.Unlock()

	g.ReloadMyTurns()
	require.Eventually(t, func() bool {
		snap, _ := g.Snapshot()
		return len(snap.MyTurns) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestLoadAvailableTurns(t *testing.T) {
	g, tl, _, _ := newTestGateway(t)
	tl.mu.Lock()
	tl.slots = []string{"2026-09-01T09:00:00", "2026-09-01T09:30:00"}
	tl.mu.Unlock()
	g.SetAuth("tok", "pat-1")

	g.LoadAvailableTurns("d-1", "2026-09-01")
	require.Eventually(t, func() bool {
		snap, _ := g.Snapshot()
		return len(snap.AvailableTurns) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestFailedFetchKeepsPreviousData(t *testing.T) {
	g, tl, _, _ := newTestGateway(t)
	tl.mu.Lock()
	tl.myTurns = []turns.Turn{{ID: "t-1"}}
	tl.mu.Unlock()
	g.SetAuth("tok", "pat-1")

	require.Eventually(t, func() bool {
		snap, _ := g.Snapshot()
		return len(snap.MyTurns) == 1
	}, time.Second, 5*time.Millisecond)

	tl.mu.Lock()
	tl.err = errors.New("boom")
	tl.mu.Unlock()
	g.ReloadMyTurns()
	g.Close()

	snap, _ := g.Snapshot()
	assert.Len(t, snap.MyTurns, 1, "stale data beats no data on a failed reload")
}

func TestLogoutClearsEverything(t *testing.T) {
	g, tl, _, _ := newTestGateway(t)
	tl.mu.Lock()
	tl.doctors = []turns.Doctor{{ID: "d-1"}}
	tl.mu.Unlock()
	g.SetAuth("tok", "pat-1")

	require.Eventually(t, func() bool {
		snap, _ := g.Snapshot()
		return len(snap.Doctors) == 1
	}, time.Second, 5*time.Millisecond)

	g.Logout()

	_, ok := g.Snapshot()
	assert.False(t, ok)
	assert.Empty(t, g.FamilyMembers())
}
