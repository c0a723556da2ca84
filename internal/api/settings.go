package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-node/internal/settings"
)

// maskedSecret replaces stored passwords in responses.
const maskedSecret = "********"

// Event channels broadcast on the hub.
const (
	EventLinkConnected    = "link.connected"
	EventLinkDisconnected = "link.disconnected"
	EventBrokerAttempt    = "broker.attempt"
	EventSettingsChanged  = "settings.changed"
)

// settingsPatch is the body of PATCH /settings. Omitted fields are left
// unchanged.
type settingsPatch struct {
	WiFi *struct {
		SSID       *string `json:"ssid"`
		Passphrase *string `json:"passphrase"`
		HostName   *string `json:"host_name"`
	} `json:"wifi"`
	MQTT *struct {
		Host     *string `json:"host"`
		Port     *int    `json:"port"`
		ClientID *string `json:"client_id"`
		Username *string `json:"username"`
		Password *string `json:"password"`
	} `json:"mqtt"`
	Console *struct {
		Enabled  *bool   `json:"enabled"`
		Password *string `json:"password"`
	} `json:"console"`
	Debug *bool `json:"debug"`
}

func (p settingsPatch) apply(rec *settings.Record) {
	if p.WiFi != nil {
		setString(&rec.Credentials.SSID, p.WiFi.SSID)
		setSecret(&rec.Credentials.Passphrase, p.WiFi.Passphrase)
		setString(&rec.Credentials.HostName, p.WiFi.HostName)
	}
	if p.MQTT != nil {
		setString(&rec.Broker.Host, p.MQTT.Host)
		setString(&rec.Broker.ClientID, p.MQTT.ClientID)
		setString(&rec.Broker.Username, p.MQTT.Username)
		setSecret(&rec.Broker.Password, p.MQTT.Password)
		if p.MQTT.Port != nil {
			rec.Broker.Port = *p.MQTT.Port
		}
	}
	if p.Console != nil {
		if p.Console.Enabled != nil {
			rec.Console.Enabled = *p.Console.Enabled
		}
		setSecret(&rec.Console.Password, p.Console.Password)
	}
	if p.Debug != nil {
		rec.Debug = *p.Debug
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// setSecret is setString for passwords. The mask sent by GET /settings
// leaves the stored value unchanged.
func setSecret(dst *string, v *string) {
	if v != nil && *v == maskedSecret {
		return
	}
	setString(dst, v)
}

// SettingsResponse is the body of the settings endpoints.
type SettingsResponse struct {
	Settings settings.Record `json:"settings"`

	// Reconnected is set when a credential or host name change restarted
	// the link.
	Reconnected bool `json:"reconnected,omitempty"`

	// BrokerRestarted is set when a broker endpoint change dropped the
	// broker session.
	BrokerRestarted bool `json:"broker_restarted,omitempty"`
}

// maskRecord hides stored passwords.
func maskRecord(rec settings.Record) settings.Record {
	mask := func(s *string) {
		if *s != "" {
			*s = maskedSecret
		}
	}
	mask(&rec.Credentials.Passphrase)
	mask(&rec.Broker.Password)
	mask(&rec.Console.Password)
	return rec
}

// handleGetSettings returns the stored settings with passwords masked.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: maskRecord(s.settings.Record())})
}

// handleUpdateSettings applies a partial update and persists it.
//
// A change to the network credentials or host name reconnects the link.
// A change to the broker endpoint drops the broker session so the next
// attempt uses the new endpoint.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var patch settingsPatch
	if err := dec.Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	before := s.settings.Record()
	after, err := s.settings.Update(patch.apply)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidRecord) {
			writeValidationError(w, err.Error())
			return
		}
		writeInternalError(w, "updating settings failed")
		return
	}

	if err := s.settings.Persist(r.Context()); err != nil {
		s.logger.Error("persisting settings failed", "error", err)
		writeInternalError(w, "persisting settings failed")
		return
	}

	resp := SettingsResponse{Settings: maskRecord(after)}
	switch {
	case before.Credentials != after.Credentials:
		if _, err := s.changeLink(r, s.supervisor.Reconnect); err != nil {
			s.logger.Warn("reconnect after settings change not scheduled", "error", err)
		} else {
			resp.Reconnected = true
		}
	case before.Broker != after.Broker:
		if err := s.do(r, s.supervisor.InvalidateBroker); err != nil {
			s.logger.Warn("broker restart after settings change not scheduled", "error", err)
		} else {
			resp.BrokerRestarted = true
		}
	}

	if before != after {
		s.logger.Info("settings updated from console",
			"reconnected", resp.Reconnected,
			"broker_restarted", resp.BrokerRestarted,
		)
		s.hub.Broadcast(EventSettingsChanged, resp.Settings)
	}

	writeJSON(w, http.StatusOK, resp)
}
