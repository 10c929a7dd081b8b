package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marianoklecha/turnos-core/internal/ui"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// UIState is the view-facing surface of the UI hub: the snapshot views
// render from, plus the two mutations a view is allowed to make directly.
type UIState interface {
	Snapshot() ui.Snapshot
	DismissToast(id string)
	TogglePanel(key string)
}

// UIHandler serves the toast/route/panel state alongside the machine
// snapshots.
type UIHandler struct {
	state  UIState
	logger *logging.Logger
}

func NewUIHandler(state UIState, logger *logging.Logger) *UIHandler {
	return &UIHandler{state: state, logger: logger.Named("ui_handler")}
}

// GetState handles GET /ui.
func (h *UIHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.state.Snapshot())
}

// DismissToast handles POST /ui/toasts/{toastID}/dismiss.
func (h *UIHandler) DismissToast(w http.ResponseWriter, r *http.Request) {
	toastID := chi.URLParam(r, "toastID")
	if toastID == "" {
		writeError(w, http.StatusBadRequest, "toast id is required")
		return
	}
	h.state.DismissToast(toastID)
	w.WriteHeader(http.StatusNoContent)
}

// TogglePanel handles POST /ui/panels/{panel}/toggle.
func (h *UIHandler) TogglePanel(w http.ResponseWriter, r *http.Request) {
	panel := chi.URLParam(r, "panel")
	if panel == "" {
		writeError(w, http.StatusBadRequest, "panel key is required")
		return
	}
	h.state.TogglePanel(panel)
	writeJSON(w, h.state.Snapshot())
}
