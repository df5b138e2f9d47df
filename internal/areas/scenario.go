package areas

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Scenario is a recorded editing session.
type Scenario struct {
	Name     string    `yaml:"name"`
	Initial  *State    `yaml:"initial,omitempty"`
	Messages []Message `yaml:"messages"`
}

// DecodeScenario reads a YAML scenario. Unknown keys are rejected.
func DecodeScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	return sc, nil
}

// Start returns the scenario's initial state, or InitialState when none is given.
func (sc Scenario) Start() *State {
	if sc.Initial != nil {
		return sc.Initial
	}
	return InitialState()
}

// EncodeState writes s as YAML.
func EncodeState(w io.Writer, s *State) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
