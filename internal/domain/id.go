package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// WireID is an identifier as sent by the persistence server, which may use
// JSON strings or integer primary keys. It always decodes to its text form.
type WireID string

func (id *WireID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = WireID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", trimmed)
	}
	*id = WireID(n.String())
	return nil
}

// UnmarshalJSON accepts string or numeric ids for the trip.
func (t *TripRecord) UnmarshalJSON(data []byte) error {
	type plain TripRecord
	aux := struct {
		*plain
		ID WireID `json:"id"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.ID = string(aux.ID)
	return nil
}

// UnmarshalJSON accepts string or numeric ids for the cost item.
func (m *MiscCostItem) UnmarshalJSON(data []byte) error {
	type plain MiscCostItem
	aux := struct {
		*plain
		ID WireID `json:"id"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = string(aux.ID)
	return nil
}
