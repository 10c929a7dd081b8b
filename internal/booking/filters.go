package booking

import (
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/internal/turns"
)

// StateFiltersIdle is the only state of the showTurns region.
const StateFiltersIdle = "idle"

// handleFilters owns the turn-list view filters. No async work.
func (m *Machine) handleFilters(ev machine.Event) {
	switch e := ev.(type) {
	case SetShowTurnsDate:
		m.ctx.ShowTurns.DateSelected = e.Value
	case SetShowTurnsStatus:
		m.ctx.ShowTurns.StatusFilter = e.Value
		m.refreshVisibleTurns()
	case ResetShowTurns:
		m.ctx.ShowTurns = ShowTurnsFilters{}
		m.refreshVisibleTurns()
	}
}

// refreshVisibleTurns re-derives the turn list the view renders from the
// full list and the active status filter. Date filtering stays view-side.
func (m *Machine) refreshVisibleTurns() {
	m.ctx.VisibleTurns = turns.FilterByStatus(m.ctx.MyTurns, m.ctx.ShowTurns.StatusFilter)
}
