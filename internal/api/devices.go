package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rookie50/ioBroker.bluos/internal/bridges/bluos"
	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// DeviceResponse is one player with its poll record and, for the detail
// endpoint, its control point states keyed by point name.
type DeviceResponse struct {
	bluos.Device
	Poll   bluos.PollStatus        `json:"poll"`
	States map[string]*state.State `json:"states,omitempty"`
}

// handleListDevices returns the configured players in configuration order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	statuses := s.bridge.Devices()
	devices := make([]DeviceResponse, 0, len(statuses))
	for _, st := range statuses {
		devices = append(devices, DeviceResponse{Device: st.Device, Poll: st.Poll})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one player and the current value of each of its
// control points.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	st, ok := s.bridge.Device(name)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	states, err := s.bridge.ControlPoints(r.Context(), name)
	if err != nil {
		s.logger.Error("reading control points failed", "device", name, "error", err)
		writeInternalError(w, "failed to read device states")
		return
	}

	writeJSON(w, http.StatusOK, DeviceResponse{Device: st.Device, Poll: st.Poll, States: states})
}
