package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// flexFloat accepts a JSON number, a finite numeric string, or null. Blank
// strings and null decode to zero, which the service treats as "use the
// default".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	v, err := decodeNumber(data)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt is the integer counterpart of flexFloat; fractional values are rejected.
type flexInt int64

func (i *flexInt) UnmarshalJSON(data []byte) error {
	v, err := decodeNumber(data)
	if err != nil {
		return err
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("expected an integer, got %v", v)
	}
	*i = flexInt(v)
	return nil
}

func decodeNumber(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("expected a finite number, got %q", s)
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}
