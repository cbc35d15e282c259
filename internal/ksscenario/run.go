package ksscenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gordian-engine/keyedstate"
)

// Report is the outcome of a scenario run.
type Report struct {
	Scenario string `yaml:"scenario"`

	// Every value delivered to each named subscriber, in order.
	Deliveries map[string][]string `yaml:"deliveries"`
}

// runner holds the state of a single scenario run.
type runner struct {
	log *slog.Logger

	r    *keyedstate.Register[string, string]
	subs map[string]*keyedstate.Subscription[string, string]

	report Report
}

// Run executes sc against a fresh register.
//
// Every expect and stat step first waits for all prior steps to take effect,
// so results are deterministic.
// Run stops at the first failed expectation,
// returning the partial report and a [StepError].
func Run(ctx context.Context, log *slog.Logger, cfg keyedstate.Config, sc Scenario) (Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rn := &runner{
		log: log,

		r:    keyedstate.NewRegister[string, string](ctx, log, cfg),
		subs: map[string]*keyedstate.Subscription[string, string]{},

		report: Report{
			Scenario:   sc.Name,
			Deliveries: map[string][]string{},
		},
	}
	defer func() {
		for _, s := range rn.subs {
			s.Close()
		}
		cancel()
		rn.r.Wait()
	}()

	for i, st := range sc.Steps {
		if err := rn.runStep(ctx, st); err != nil {
			return rn.report, StepError{Index: i, Err: err}
		}
	}

	return rn.report, nil
}

func (rn *runner) runStep(ctx context.Context, st Step) error {
	switch {
	case st.Emit != nil:
		rn.log.Debug("Emit", "key", st.Emit.Key, "value", st.Emit.Value)
		rn.r.Emit(st.Emit.Key, st.Emit.Value)
		return nil

	case st.Release != nil:
		rn.log.Debug("Release", "key", st.Release.Key)
		rn.r.Release(st.Release.Key)
		return nil

	case st.Subscribe != nil:
		return rn.subscribe(ctx, *st.Subscribe)

	case st.Cancel != nil:
		s, ok := rn.subs[st.Cancel.Name]
		if !ok {
			return fmt.Errorf("cancel of unknown subscriber %q", st.Cancel.Name)
		}
		s.Close()
		delete(rn.subs, st.Cancel.Name)
		return nil

	case st.Expect != nil:
		return rn.expect(ctx, *st.Expect)

	case st.Stat != nil:
		return rn.stat(ctx, *st.Stat)

	default:
		return errors.New("step has no action")
	}
}

func (rn *runner) subscribe(ctx context.Context, st SubscribeStep) error {
	if _, ok := rn.subs[st.Name]; ok {
		return fmt.Errorf("subscriber %q is already active", st.Name)
	}

	s, err := rn.r.Subscribe(ctx, st.Key)
	if err != nil {
		return fmt.Errorf("failed to subscribe %q to key %q: %w", st.Name, st.Key, err)
	}

	rn.log.Debug("Subscribed", "name", st.Name, "key", st.Key, "sub_id", s.ID())
	rn.subs[st.Name] = s

	// Ensure the subscriber appears in the report even if it never receives anything.
	if _, ok := rn.report.Deliveries[st.Name]; !ok {
		rn.report.Deliveries[st.Name] = []string{}
	}

	return nil
}

func (rn *runner) expect(ctx context.Context, st ExpectStep) error {
	s, ok := rn.subs[st.Name]
	if !ok {
		return fmt.Errorf("expect on unknown subscriber %q", st.Name)
	}

	if err := rn.r.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync before expect: %w", err)
	}

	var got []string
	for {
		v, ok := s.TryNext()
		if !ok {
			break
		}
		got = append(got, v)
	}
	rn.report.Deliveries[st.Name] = append(rn.report.Deliveries[st.Name], got...)

	if !slices.Equal(got, st.Values) {
		return fmt.Errorf(
			"subscriber %q: expected values %q, got %q", st.Name, st.Values, got,
		)
	}

	return nil
}

func (rn *runner) stat(ctx context.Context, st StatStep) error {
	if err := rn.r.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync before stat: %w", err)
	}

	hs, ok, err := rn.r.Stat(ctx, st.Key)
	if err != nil {
		return fmt.Errorf("failed to stat key %q: %w", st.Key, err)
	}

	if ok != st.Present {
		return fmt.Errorf("key %q: expected present=%t, got %t", st.Key, st.Present, ok)
	}
	if !ok {
		return nil
	}

	want := keyedstate.HolderStat{
		Subscribers: st.Subscribers,
		Releasable:  st.Releasable,
		HasValue:    st.HasValue,
	}
	if hs != want {
		return fmt.Errorf("key %q: expected %+v, got %+v", st.Key, want, hs)
	}

	return nil
}
