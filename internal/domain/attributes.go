package domain

import (
	"bytes"
	"encoding/json"
)

// AttributeList tolerates both canonical JSON arrays and arrays that were
// stringified on a previous round trip (e.g. through a CSV cell). Anything
// unparseable decodes as nil rather than failing the artifact load.
type AttributeList []EntityAttribute

func (a *AttributeList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if data[0] == '"' {
		var cell string
		if err := json.Unmarshal(data, &cell); err != nil {
			*a = nil
			return nil
		}
		*a = ParseAttributeList(cell)
		return nil
	}
	var list []EntityAttribute
	if err := json.Unmarshal(data, &list); err != nil {
		*a = nil
		return nil
	}
	*a = list
	return nil
}

// ParseAttributeList decodes a stringified attribute array. Unparseable
// input yields nil.
func ParseAttributeList(cell string) AttributeList {
	var list []EntityAttribute
	if err := json.Unmarshal([]byte(cell), &list); err != nil {
		return nil
	}
	return list
}
