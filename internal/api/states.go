package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// SetStateRequest is the body of PUT /api/v1/states/{id}.
type SetStateRequest struct {
	Val json.RawMessage `json:"val"`
}

// handleGetState returns the current value of any key.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := state.ValidateID(id); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	st, err := s.store.GetState(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrStateNotFound) {
			writeNotFound(w, "state not found")
			return
		}
		s.logger.Error("reading state failed", "id", id, "error", err)
		writeInternalError(w, "failed to read state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "state": st})
}

// handleSetState writes an unacknowledged value to a writable key. The
// adapter picks it up like any other command and acknowledges it once
// carried out, so the response is 202 Accepted.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := state.ValidateID(id); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req SetStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Val) == 0 {
		writeBadRequest(w, "val is required")
		return
	}

	var val any
	if err := json.Unmarshal(req.Val, &val); err != nil {
		writeBadRequest(w, "invalid val")
		return
	}

	obj, err := s.store.GetObject(ctx, id)
	if err != nil {
		if errors.Is(err, state.ErrObjectNotFound) {
			writeNotFound(w, "object not found")
			return
		}
		s.logger.Error("reading object failed", "id", id, "error", err)
		writeInternalError(w, "failed to read object")
		return
	}
	if !obj.Common.Write {
		writeForbidden(w, "state is read-only")
		return
	}

	if err := s.store.SetState(ctx, id, val, false); err != nil {
		if errors.Is(err, state.ErrInvalidValue) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("writing state failed", "id", id, "error", err)
		writeInternalError(w, "failed to write state")
		return
	}

	s.logger.Debug("state command accepted", "id", id, "request_id", requestIDFrom(ctx))
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "val": val, "ack": false})
}
