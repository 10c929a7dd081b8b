// Package ui holds the view-facing notification surface. The Hub collects
// toast notifications, tracks the current route and the open panels, and is
// what the machines are handed as their Toaster/Navigator/PanelUI handles.
// Views poll or stream its snapshot; they never reach into a machine.
package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marianoklecha/turnos-core/internal/notify"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

const maxToasts = 20

// PanelCreateFamily is the key of the family-member creation panel.
const PanelCreateFamily = "createFamilyMember"

// Toast is one transient notification.
type Toast struct {
	ID        string          `json:"id"`
	Severity  notify.Severity `json:"severity"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Snapshot is the read-only view state.
type Snapshot struct {
	Toasts []Toast         `json:"toasts"`
	Route  string          `json:"route"`
	Panels map[string]bool `json:"panels"`
}

// Hub implements notify.Toaster, notify.Navigator and the family machine's
// panel handle.
type Hub struct {
	logger *logging.Logger

	mu     sync.RWMutex
	toasts []Toast
	route  string
	panels map[string]bool
}

// NewHub builds an empty hub starting at the given route.
func NewHub(initialRoute string, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger.Named("ui"),
		route:  initialRoute,
		panels: make(map[string]bool),
	}
}

// Toast implements notify.Toaster. The ring keeps the newest entries.
func (h *Hub) Toast(severity notify.Severity, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toasts = append(h.toasts, Toast{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if len(h.toasts) > maxToasts {
		h.toasts = h.toasts[len(h.toasts)-maxToasts:]
	}
	h.logger.Debug("toast queued", "severity", string(severity), "message", message)
}

// DismissToast drops one toast by id.
func (h *Hub) DismissToast(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, tst := range h.toasts {
		if tst.ID == id {
			h.toasts = append(h.toasts[:i], h.toasts[i+1:]...)
			return
		}
	}
}

// NavigateTo implements notify.Navigator.
func (h *Hub) NavigateTo(path string) {
	h.mu.Lock()
	h.route = path
	h.mu.Unlock()
	h.logger.Debug("route changed", "path", path)
}

// Route returns the current route.
func (h *Hub) Route() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.route
}

// ToggleCreatePanel flips the family creation panel.
func (h *Hub) ToggleCreatePanel() {
	h.TogglePanel(PanelCreateFamily)
}

// TogglePanel flips an arbitrary panel key.
func (h *Hub) TogglePanel(key string) {
	h.mu.Lock()
	h.panels[key] = !h.panels[key]
	h.mu.Unlock()
}

// Snapshot returns a copy of the current view state.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	panels := make(map[string]bool, len(h.panels))
	for k, v := range h.panels {
		panels[k] = v
	}
	return Snapshot{
		Toasts: append([]Toast(nil), h.toasts...),
		Route:  h.route,
		Panels: panels,
	}
}
