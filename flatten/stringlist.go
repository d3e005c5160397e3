package flatten

import (
	"encoding/json"
	"fmt"
	"strings"
)

// listJoinDelimiter joins multi-valued fields into one scalar.
const listJoinDelimiter = ", "

// StringList models a source field that appears as null, a single
// string, or an array of strings depending on the record (e.g. a
// doubles winner pair vs a singles winner). It is an explicit variant
// type: Present distinguishes null from an empty list.
type StringList struct {
	Values  []string
	Present bool
}

// UnmarshalJSON accepts null, a scalar string, or an array of strings.
// Anything else is a malformed record.
func (s *StringList) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		s.Values, s.Present = nil, false
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return fmt.Errorf("flatten: string list: %w", err)
		}
		s.Values, s.Present = arr, true
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("flatten: string list: %w", err)
	}
	s.Values, s.Present = []string{one}, true
	return nil
}

// Join normalizes the variant to a single scalar. Null stays null
// (ok = false); scalar and array collapse to one delimited string.
func (s StringList) Join() (string, bool) {
	if !s.Present {
		return "", false
	}
	return strings.Join(s.Values, listJoinDelimiter), true
}
