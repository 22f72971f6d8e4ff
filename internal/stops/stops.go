// Package stops holds the stop directory: every stop pole known to the ZTM
// open data API, as fetched by fetch-stops and crawled by index-lines.
package stops

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Fakelatency/ztm-schedule/internal/static"
)

// Stop is one pole of a stop group. ID and Number together identify the
// physical pole; Name and Direction are descriptive only. Every field is
// stored as a string: numeric ids are written back quoted and a null
// direction is written back as "".
type Stop struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
}

// Key returns the "id-number" identity of the pole.
func (s Stop) Key() string {
	return s.ID + "-" + s.Number
}

// UnmarshalJSON accepts string or numeric id/number values (older directory
// dumps carry numeric group ids) and treats null as empty.
func (s *Stop) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Number    json.RawMessage `json:"number"`
		Name      json.RawMessage `json:"name"`
		Direction json.RawMessage `json:"direction"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.ID, err = scalarString(raw.ID); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if s.Number, err = scalarString(raw.Number); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	if s.Name, err = scalarString(raw.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if s.Direction, err = scalarString(raw.Direction); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return n.String(), nil
}

// Load reads a stop directory file written by Save (or by any tool producing
// the same shape). A missing file or malformed JSON is an error; an empty
// array is a valid, empty directory.
func Load(path string) ([]Stop, error) {
	var all []Stop
	if err := static.ReadJSON(path, &all); err != nil {
		return nil, fmt.Errorf("failed to load stop directory: %w", err)
	}
	if all == nil {
		all = []Stop{}
	}
	return all, nil
}

// Save writes the stop directory, replacing any previous file.
func Save(path string, all []Stop) error {
	if all == nil {
		all = []Stop{}
	}
	return static.WriteJSON(path, all)
}
