package ztm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedResponse is returned when the API answers 200 OK with a body
// that does not carry a result array. The API reports bad parameters and
// invalid keys this way, as a plain string in "result".
var ErrUnexpectedResponse = errors.New("unexpected API response")

// Row keys used by the ZTM datasets.
const (
	keyGroupID   = "zespol"
	keyPole      = "slupek"
	keyGroupName = "nazwa_zespolu"
	keyDirection = "kierunek"
	keyLine      = "linia"
	keyTime      = "czas"
	keyRoute     = "trasa"
	keyBrigade   = "brygada"
)

// keyValue is one cell of a dataset row. Value is nil for JSON null.
type keyValue struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// row is a dataset row reduced to its known keys. Null and "null" values are
// treated as absent, so lookups of either return "".
type row map[string]string

func newRow(cells []keyValue) row {
	r := make(row, len(cells))
	for _, c := range cells {
		if c.Value == nil {
			continue
		}
		v := strings.TrimSpace(*c.Value)
		if v == "" || v == "null" {
			continue
		}
		r[c.Key] = v
	}
	return r
}

// envelope is the outer shape shared by dbstore_get and dbtimetable_get.
type envelope struct {
	Result json.RawMessage `json:"result"`
}

// valuesRow is the row shape used by dbstore_get and the lines dataset.
type valuesRow struct {
	Values []keyValue `json:"values"`
}

// decodeResult unmarshals the result array into out, turning the API's
// string-typed error results into ErrUnexpectedResponse.
func decodeResult(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	raw := bytes.TrimSpace(env.Result)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil
	case raw[0] == '"':
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, msg)
	case raw[0] != '[':
		return fmt.Errorf("%w: result is not an array", ErrUnexpectedResponse)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Departure is one scheduled departure from a stop pole for a line.
type Departure struct {
	Time      string `json:"time"` // HH:MM:SS, hours may exceed 23 for after-midnight service
	Direction string `json:"direction,omitempty"`
	Route     string `json:"route,omitempty"`
	Brigade   string `json:"brigade,omitempty"`
}
