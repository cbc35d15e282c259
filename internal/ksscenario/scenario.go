package ksscenario

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Scenario is a named, ordered list of steps
// to run against a fresh register.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is a single scenario action.
// Exactly one field must be set.
type Step struct {
	Emit      *EmitStep      `yaml:"emit,omitempty"`
	Release   *ReleaseStep   `yaml:"release,omitempty"`
	Subscribe *SubscribeStep `yaml:"subscribe,omitempty"`
	Cancel    *CancelStep    `yaml:"cancel,omitempty"`
	Expect    *ExpectStep    `yaml:"expect,omitempty"`
	Stat      *StatStep      `yaml:"stat,omitempty"`
}

type EmitStep struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type ReleaseStep struct {
	Key string `yaml:"key"`
}

// SubscribeStep starts a named subscriber on Key.
type SubscribeStep struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// CancelStep closes the named subscriber.
type CancelStep struct {
	Name string `yaml:"name"`
}

// ExpectStep asserts that, after all prior steps take effect,
// the named subscriber has received exactly Values
// since its previous expect step.
type ExpectStep struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// StatStep asserts the holder state of Key.
// When Present is false, the remaining fields are ignored.
type StatStep struct {
	Key         string `yaml:"key"`
	Present     bool   `yaml:"present"`
	Subscribers int    `yaml:"subscribers"`
	Releasable  bool   `yaml:"releasable"`
	HasValue    bool   `yaml:"has_value"`
}

// Parse decodes and validates a scenario from r.
// Unknown fields are rejected.
func Parse(r io.Reader) (Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return Scenario{}, errors.New("empty scenario")
		}
		return Scenario{}, fmt.Errorf("failed to decode scenario: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}

	return sc, nil
}

// Validate checks that every step sets exactly one action
// and that subscriber names are used consistently.
func (sc Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}

	active := map[string]bool{}
	for i, st := range sc.Steps {
		if n := st.actionCount(); n != 1 {
			return StepError{
				Index: i,
				Err:   fmt.Errorf("step must set exactly one action, got %d", n),
			}
		}

		switch {
		case st.Subscribe != nil:
			if st.Subscribe.Name == "" {
				return StepError{Index: i, Err: errors.New("subscribe requires a name")}
			}
			if active[st.Subscribe.Name] {
				return StepError{
					Index: i,
					Err:   fmt.Errorf("subscriber %q is already active", st.Subscribe.Name),
				}
			}
			active[st.Subscribe.Name] = true

		case st.Cancel != nil:
			if !active[st.Cancel.Name] {
				return StepError{
					Index: i,
					Err:   fmt.Errorf("cancel of unknown subscriber %q", st.Cancel.Name),
				}
			}
			delete(active, st.Cancel.Name)

		case st.Expect != nil:
			if !active[st.Expect.Name] {
				return StepError{
					Index: i,
					Err:   fmt.Errorf("expect on unknown subscriber %q", st.Expect.Name),
				}
			}
		}
	}

	return nil
}

func (st Step) actionCount() int {
	n := 0
	for _, set := range []bool{
		st.Emit != nil,
		st.Release != nil,
		st.Subscribe != nil,
		st.Cancel != nil,
		st.Expect != nil,
		st.Stat != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// StepError identifies the scenario step that failed
// validation or execution.
type StepError struct {
	Index int
	Err   error
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Index, e.Err)
}

func (e StepError) Unwrap() error {
	return e.Err
}
