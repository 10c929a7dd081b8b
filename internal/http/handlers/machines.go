// Package handlers exposes the machines over HTTP: views dispatch events
// and read snapshots through these endpoints instead of holding machine
// references.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marianoklecha/turnos-core/internal/bus"
	httpmiddleware "github.com/marianoklecha/turnos-core/internal/http/middleware"
	"github.com/marianoklecha/turnos-core/internal/machine"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// EventDecoder builds a machine event from its wire type and payload.
type EventDecoder func(eventType string, payload json.RawMessage) (machine.Event, error)

// IdentityBinder propagates the verified caller identity into the machines
// and the data layer before an event is handled.
type IdentityBinder interface {
	Bind(accessToken, patientID string)
}

// MachineHandler serves event dispatch and snapshot reads for every
// registered machine.
type MachineHandler struct {
	registry *bus.Bus
	decoders map[string]EventDecoder
	identity IdentityBinder
	logger   *logging.Logger
}

// NewMachineHandler builds the handler. decoders maps a machine id to its
// wire codec; identity may be nil when auth is disabled.
func NewMachineHandler(registry *bus.Bus, decoders map[string]EventDecoder, identity IdentityBinder, logger *logging.Logger) *MachineHandler {
	if registry == nil {
		panic("handlers: bus required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MachineHandler{
		registry: registry,
		decoders: decoders,
		identity: identity,
		logger:   logger.Named("http.machines"),
	}
}

type eventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DispatchEvent handles POST /machines/{machineID}/events.
func (h *MachineHandler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "machineID")
	decode, ok := h.decoders[machineID]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown machine")
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "event type required")
		return
	}

	ev, err := decode(req.Type, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.bindIdentity(r)

	if err := h.registry.Dispatch(r.Context(), machineID, ev); err != nil {
		if errors.Is(err, machine.ErrRunnerClosed) {
			writeError(w, http.StatusServiceUnavailable, "machine stopped")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Debug("event dispatched", "machine", machineID, "event", req.Type)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// GetSnapshot handles GET /machines/{machineID}.
func (h *MachineHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	machineID := chi.URLParam(r, "machineID")
	snap, ok := h.registry.Snapshot(machineID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown machine")
		return
	}
	h.bindIdentity(r)
	writeJSON(w, snap)
}

// ListMachines handles GET /machines.
func (h *MachineHandler) ListMachines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string][]string{"machines": h.registry.IDs()})
}

func (h *MachineHandler) bindIdentity(r *http.Request) {
	if h.identity == nil {
		return
	}
	token, ok := httpmiddleware.TokenFromContext(r.Context())
	if !ok {
		return
	}
	patientID, _ := httpmiddleware.PatientIDFromContext(r.Context())
	h.identity.Bind(token, patientID)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
