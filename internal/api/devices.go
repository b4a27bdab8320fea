package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
)

// maxQueryParamLen bounds path and query parameters.
const maxQueryParamLen = 100

// commandRequest is the body of POST /devices/{id}/entities/{key}/command.
type commandRequest struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Value   any    `json:"value,omitempty"`
}

// handleListDevices returns every paired device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one paired device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	d, found := s.bridge.Device(id)
	if !found {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListEntities returns the entities of a device with their state.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	entities, err := s.bridge.Entities(id)
	if err != nil {
		if errors.Is(err, tuyable.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entities":  entities,
		"count":     len(entities),
	})
}

// handleEntityCommand runs a command against one entity.
//
// The response is the command ack: 202 when accepted, otherwise an error
// whose code is the ack error code.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" || len(key) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity key")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "command is required")
		return
	}

	cmd := tuyable.CommandMessage{ID: req.ID, Command: req.Command, Value: req.Value, Source: "api"}
	ack, err := s.bridge.ExecuteCommand(r.Context(), id, key, cmd)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ack)
}

func deviceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return "", false
	}
	return id, true
}
