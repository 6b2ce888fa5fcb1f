package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a record identifier. The store sends ids as JSON numbers or strings;
// both decode to the same textual form.
type ID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(s)
	return nil
}

// String returns the id text.
func (id ID) String() string {
	return string(id)
}

// Amount is a money or numeric value sent either as a number or as a decimal
// string.
type Amount float64

// UnmarshalJSON accepts a JSON number, a numeric string, or null/"".
func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	if s == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", s, err)
	}
	*a = Amount(v)
	return nil
}

// String formats the amount with two decimals.
func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

// StringList is a list of strings that may arrive as a single string, a
// JSON array, or null.
type StringList []string

// UnmarshalJSON accepts an array, a single string, or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = StringList{s}
		}
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	*l = items
	return nil
}

// scalarText returns the text of a JSON number, string, or null.
func scalarText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
