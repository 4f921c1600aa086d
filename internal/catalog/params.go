package catalog

import (
	"encoding/json"
	"strings"
)

// SupportedParameters is the polymorphic capability advertisement attached
// to an offer. Upstream sends either an ordered list of capability names or
// a name→value mapping; both shapes are consumed only through HasCapability.
type SupportedParameters struct {
	List []string
	Map  map[string]any
}

// IsZero reports whether no parameter data was present.
func (p SupportedParameters) IsZero() bool {
	return p.List == nil && p.Map == nil
}

// UnmarshalJSON accepts a JSON array of strings, a JSON object, or null.
// Any other shape is treated as absent rather than an error; malformed
// upstream data degrades to "no capabilities advertised".
func (p *SupportedParameters) UnmarshalJSON(data []byte) error {
	*p = SupportedParameters{}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return nil
		}
		p.List = list
	case '{':
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
		p.Map = m
	}
	return nil
}

// MarshalJSON renders whichever shape was present, or null.
func (p SupportedParameters) MarshalJSON() ([]byte, error) {
	if p.List != nil {
		return json.Marshal(p.List)
	}
	if p.Map != nil {
		return json.Marshal(p.Map)
	}
	return []byte("null"), nil
}

// HasCapability reports whether a capability is advertised. For the list
// shape an element must equal the name or start with it, so "reasoning"
// matches variants like "reasoning.effort". For the map shape the value
// under the name must be truthy. Absent or malformed data is never an
// error, the capability is simply not present.
func (p SupportedParameters) HasCapability(name string) bool {
	if p.List != nil {
		for _, v := range p.List {
			if v == name || strings.HasPrefix(v, name) {
				return true
			}
		}
		return false
	}
	if p.Map != nil {
		v, ok := p.Map[name]
		if !ok {
			return false
		}
		return truthy(v)
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
