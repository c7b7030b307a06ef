package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

var errAttributeValue = errors.New("attribute value must be a string or a boolean")

// AttributeValue holds either a string or a boolean. On the wire it is the
// bare JSON value, so "true" and true stay distinct.
type AttributeValue struct {
	str    string
	b      bool
	isBool bool
}

// StringValue returns a string attribute value.
func StringValue(s string) AttributeValue { return AttributeValue{str: s} }

// BoolValue returns a boolean attribute value.
func BoolValue(b bool) AttributeValue { return AttributeValue{b: b, isBool: true} }

// IsBool reports whether the value is a boolean.
func (v AttributeValue) IsBool() bool { return v.isBool }

// Bool returns the boolean and whether the value is one.
func (v AttributeValue) Bool() (bool, bool) { return v.b, v.isBool }

// String returns the textual form. Booleans render as "true" or "false".
func (v AttributeValue) String() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return v.str
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	if v.isBool {
		return json.Marshal(v.b)
	}
	return json.Marshal(v.str)
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*v = BoolValue(true)
	case bytes.Equal(data, []byte("false")):
		*v = BoolValue(false)
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		return errAttributeValue
	}
	return nil
}
