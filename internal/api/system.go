package api

import (
	"encoding/json"
	"net/http"
)

// factoryResetConfirm must be sent verbatim to reset the settings store.
const factoryResetConfirm = "FACTORY RESET"

// FactoryResetRequest is the body of POST /system/factory-reset.
type FactoryResetRequest struct {
	Confirm string `json:"confirm"`
}

// handleFactoryReset restores the default settings and reconnects the link
// with them.
//
// This is a destructive operation: the request must include an exact
// confirmation string.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	var req FactoryResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Confirm != factoryResetConfirm {
		writeBadRequest(w, `confirm field must be exactly "FACTORY RESET"`)
		return
	}

	if err := s.settings.Reset(r.Context()); err != nil {
		s.logger.Error("factory reset failed", "error", err)
		writeInternalError(w, "resetting settings failed")
		return
	}
	s.logger.Warn("settings reset to defaults from console")

	resp := SettingsResponse{Settings: maskRecord(s.settings.Record())}
	if _, err := s.changeLink(r, s.supervisor.Reconnect); err != nil {
		s.logger.Warn("reconnect after factory reset not scheduled", "error", err)
	} else {
		resp.Reconnected = true
	}

	s.hub.Broadcast(EventSettingsChanged, resp.Settings)
	writeJSON(w, http.StatusOK, resp)
}
