package iclass

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// the portal sends ids and status flags as numbers or strings depending on the endpoint
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	if !json.Valid(b) {
		return fmt.Errorf("invalid json value `%s`", b)
	}
	*s = looseString(b)
	return nil
}

func (s looseString) String() string { return string(s) }

// null, "", {} and [] all mean the portal had nothing for us
func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.Join(bytes.Fields(raw), nil)) {
	case "", "null", `""`, "{}", "[]", "false":
		return true
	}
	return false
}
