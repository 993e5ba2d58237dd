package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/ledger"
	"github.com/eigerco/surety/internal/state"
	"github.com/eigerco/surety/pkg/log"
)

const opAwaitResolution = "await_resolution"

// Step is one entry of an operation script. Flights are named by airline,
// designator and timestamp; amounts are decimal units such as "0.7".
type Step struct {
	Op          string        `yaml:"op"`
	Caller      string        `yaml:"caller,omitempty"`
	Applicant   string        `yaml:"applicant,omitempty"`
	Sponsor     string        `yaml:"sponsor,omitempty"`
	Voter       string        `yaml:"voter,omitempty"`
	Airline     string        `yaml:"airline,omitempty"`
	Designator  string        `yaml:"designator,omitempty"`
	Timestamp   uint64        `yaml:"timestamp,omitempty"`
	Oracle      string        `yaml:"oracle,omitempty"`
	Index       uint8         `yaml:"index,omitempty"`
	Status      string        `yaml:"status,omitempty"`
	Passenger   string        `yaml:"passenger,omitempty"`
	Target      string        `yaml:"target,omitempty"`
	Amount      string        `yaml:"amount,omitempty"`
	Percentage  uint64        `yaml:"percentage,omitempty"`
	Operational *bool         `yaml:"operational,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	ExpectError bool          `yaml:"expect_error,omitempty"`
}

// LoadScript decodes a YAML list of steps. Unknown fields are rejected.
func LoadScript(r io.Reader) ([]Step, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var steps []Step
	if err := dec.Decode(&steps); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode script: %w", err)
	}
	for i, s := range steps {
		if s.Op == opAwaitResolution {
			continue
		}
		if _, err := s.Operation(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return steps, nil
}

func ReadScript(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}

// Operation builds the ledger operation the step names.
func (s Step) Operation() (Operation, error) {
	var p parser
	var op Operation
	switch s.Op {
	case "set_operational":
		if s.Operational == nil {
			return nil, errors.New("set_operational needs operational")
		}
		op = SetOperational{On: *s.Operational, Caller: p.address("caller", s.Caller)}
	case "authorize_caller":
		op = AuthorizeCaller{Target: p.address("target", s.Target), Caller: p.address("caller", s.Caller)}
	case "deauthorize_caller":
		op = DeauthorizeCaller{Target: p.address("target", s.Target), Caller: p.address("caller", s.Caller)}
	case "apply_for_admission":
		op = ApplyForAdmission{Applicant: p.address("applicant", s.Applicant), Sponsor: p.address("sponsor", s.Sponsor)}
	case "vote":
		op = Vote{Applicant: p.address("applicant", s.Applicant), Voter: p.address("voter", s.Voter)}
	case "fund":
		op = Fund{Airline: p.address("airline", s.Airline), Amount: p.amount(s.Amount)}
	case "register_flight":
		op = RegisterFlight{Airline: p.address("airline", s.Airline), Designator: s.Designator, Timestamp: s.Timestamp}
	case "register_oracle":
		op = RegisterOracle{Oracle: p.address("oracle", s.Oracle), Fee: p.amount(s.Amount)}
	case "request_status":
		op = RequestStatus{Flight: p.flight(s), Caller: p.address("caller", s.Caller)}
	case "submit_response":
		op = SubmitResponse{Oracle: p.address("oracle", s.Oracle), Index: s.Index, Flight: p.flight(s), Status: p.status(s.Status)}
	case "buy":
		op = Buy{Passenger: p.address("passenger", s.Passenger), Flight: p.flight(s), Premium: p.amount(s.Amount)}
	case "credit_insurees":
		op = CreditInsurees{Flight: p.flight(s), Percentage: s.Percentage}
	case "withdraw":
		op = Withdraw{Passenger: p.address("passenger", s.Passenger), Caller: p.address("caller", s.Caller)}
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
	if p.err != nil {
		return nil, fmt.Errorf("%s: %w", s.Op, p.err)
	}
	return op, nil
}

// FlightKey derives the key of the flight the step names.
func (s Step) FlightKey() (state.FlightKey, error) {
	var p parser
	key := p.flight(s)
	return key, p.err
}

// parser keeps the first error so a step's fields can be read in one go.
type parser struct {
	err error
}

func (p *parser) address(field, s string) crypto.Address {
	if p.err != nil {
		return crypto.Address{}
	}
	if s == "" {
		p.err = fmt.Errorf("%s is required", field)
		return crypto.Address{}
	}
	a, err := crypto.AddressFromHex(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return a
}

func (p *parser) amount(s string) common.Amount {
	if p.err != nil {
		return 0
	}
	a, err := common.ParseAmount(s)
	if err != nil {
		p.err = err
	}
	return a
}

func (p *parser) status(s string) state.FlightStatus {
	if p.err != nil {
		return 0
	}
	st, err := state.ParseFlightStatus(s)
	if err != nil {
		p.err = err
	}
	return st
}

func (p *parser) flight(s Step) state.FlightKey {
	airline := p.address("airline", s.Airline)
	if p.err == nil && s.Designator == "" {
		p.err = errors.New("designator is required")
	}
	return state.NewFlightKey(airline, s.Designator, s.Timestamp)
}

// Replay submits the steps in order and stops at the first unexpected
// outcome. An await_resolution step blocks until the named flight has a
// resolved status in the ledger, or one was announced on bus since Replay
// started.
func (h *Host) Replay(ctx context.Context, steps []Step, bus *events.Bus) error {
	w := newResolutionWatch()
	unsubscribe := bus.Subscribe(w.handle)
	defer unsubscribe()

	for i, step := range steps {
		n := i + 1
		if step.Op == opAwaitResolution {
			key, err := step.FlightKey()
			if err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
			status, err := h.awaitResolution(ctx, key, step.Timeout, w)
			if err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
			log.Host.Info().Int("step", n).Stringer("flight", key).Stringer("status", status).Msg("flight resolved")
			continue
		}

		op, err := step.Operation()
		if err != nil {
			return fmt.Errorf("step %d: %w", n, err)
		}
		_, err = h.Submit(ctx, op)
		switch {
		case step.ExpectError && err == nil:
			return fmt.Errorf("step %d: %s was expected to be rejected", n, op.Name())
		case step.ExpectError:
			log.Host.Info().Int("step", n).Str("op", op.Name()).Err(err).Msg("script step rejected as expected")
		case err != nil:
			return fmt.Errorf("step %d: %w", n, err)
		default:
			log.Host.Info().Int("step", n).Str("op", op.Name()).Msg("script step applied")
		}
	}
	return nil
}

// resolutionWatch collects StatusResolved events without ever blocking the
// publisher.
type resolutionWatch struct {
	mu     sync.Mutex
	seen   map[state.FlightKey]state.FlightStatus
	notify chan struct{}
}

func newResolutionWatch() *resolutionWatch {
	return &resolutionWatch{
		seen:   make(map[state.FlightKey]state.FlightStatus),
		notify: make(chan struct{}, 1),
	}
}

func (w *resolutionWatch) handle(ev events.Event) {
	r, ok := ev.(events.StatusResolved)
	if !ok {
		return
	}
	w.mu.Lock()
	w.seen[r.Flight] = r.Status
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *resolutionWatch) status(key state.FlightKey) (state.FlightStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.seen[key]
	return st, ok
}

func (h *Host) awaitResolution(ctx context.Context, key state.FlightKey, timeout time.Duration, w *resolutionWatch) (state.FlightStatus, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var (
		flight   state.Flight
		resolved bool
	)
	if err := h.Query(ctx, func(l *ledger.Ledger) {
		flight, resolved = l.Flight(key)
		resolved = resolved && flight.Resolved
	}); err != nil {
		return 0, err
	}
	if resolved {
		return flight.Status, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if status, ok := w.status(key); ok {
			return status, nil
		}
		select {
		case <-w.notify:
		case <-timer.C:
			return 0, fmt.Errorf("flight %s not resolved within %s", key, timeout)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
