package device

import (
	"encoding/json"
	"fmt"
)

// ConnectionStatus is derived from the presence of a connection ID.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
)

// Device is a managed endpoint as listed by the device-management API.
type Device struct {
	ID           string `json:"id"`
	ClientID     string `json:"clientId"`
	DisplayName  string `json:"displayName,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`

	// Extra keeps any other fields the backend sent, so a decoded device
	// re-encodes without losing data.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the JSON keys mapped onto Device struct fields.
var knownFields = map[string]bool{
	"id":           true,
	"clientId":     true,
	"displayName":  true,
	"osVersion":    true,
	"serialNumber": true,
	"connectionId": true,
}

// Status reports whether the device currently holds a connection.
func (d Device) Status() ConnectionStatus {
	if d.ConnectionID != "" {
		return StatusConnected
	}
	return StatusDisconnected
}

// Connected is shorthand for Status() == StatusConnected.
func (d Device) Connected() bool {
	return d.ConnectionID != ""
}

// Label returns the display name, falling back to the client ID.
func (d Device) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ClientID
}

// deviceFields avoids recursion in the custom (un)marshallers.
type deviceFields Device

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (d *Device) UnmarshalJSON(data []byte) error {
	var fields deviceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding device: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding device: %w", err)
	}
	for key := range knownFields {
		delete(raw, key)
	}
	if len(raw) > 0 {
		fields.Extra = raw
	}

	*d = Device(fields)
	return nil
}

// MarshalJSON encodes the known fields merged with Extra.
func (d Device) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(deviceFields(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(d.Extra)+len(knownFields))
	for k, v := range d.Extra {
		if !knownFields[k] {
			merged[k] = v
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
