package host

import (
	"context"
	"fmt"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/ledger"
	"github.com/eigerco/surety/internal/state"
)

// Operation is one mutating ledger entry point with its arguments.
type Operation interface {
	Name() string
	apply(ctx context.Context, l *ledger.Ledger) (Result, error)
}

// Result carries whatever the applied operation returned.
type Result struct {
	AirlineStatus state.AirlineStatus
	Flight        state.FlightKey
	Indices       [common.IndicesPerOracle]uint8
	Index         uint8
	Amount        common.Amount
}

// deposit is value that reached the ledger through a successful operation.
type deposit struct {
	from   crypto.Address
	amount common.Amount
}

type depositor interface {
	deposit() deposit
}

type SetOperational struct {
	On     bool
	Caller crypto.Address
}

func (SetOperational) Name() string { return "setOperational" }

func (o SetOperational) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	return Result{}, l.SetOperational(o.On, o.Caller)
}

func (o SetOperational) String() string {
	return fmt.Sprintf("on=%t caller=%s", o.On, o.Caller)
}

type AuthorizeCaller struct {
	Target crypto.Address
	Caller crypto.Address
}

func (AuthorizeCaller) Name() string { return "authorizeCaller" }

func (o AuthorizeCaller) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	return Result{}, l.AuthorizeCaller(o.Target, o.Caller)
}

func (o AuthorizeCaller) String() string {
	return fmt.Sprintf("target=%s caller=%s", o.Target, o.Caller)
}

type DeauthorizeCaller struct {
	Target crypto.Address
	Caller crypto.Address
}

func (DeauthorizeCaller) Name() string { return "deauthorizeCaller" }

func (o DeauthorizeCaller) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	return Result{}, l.DeauthorizeCaller(o.Target, o.Caller)
}

func (o DeauthorizeCaller) String() string {
	return fmt.Sprintf("target=%s caller=%s", o.Target, o.Caller)
}

type ApplyForAdmission struct {
	Applicant crypto.Address
	Sponsor   crypto.Address
}

func (ApplyForAdmission) Name() string { return "applyForAdmission" }

func (o ApplyForAdmission) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	status, err := l.ApplyForAdmission(o.Applicant, o.Sponsor)
	return Result{AirlineStatus: status}, err
}

func (o ApplyForAdmission) String() string {
	return fmt.Sprintf("applicant=%s sponsor=%s", o.Applicant, o.Sponsor)
}

type Vote struct {
	Applicant crypto.Address
	Voter     crypto.Address
}

func (Vote) Name() string { return "vote" }

func (o Vote) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	status, err := l.Vote(o.Applicant, o.Voter)
	return Result{AirlineStatus: status}, err
}

func (o Vote) String() string {
	return fmt.Sprintf("applicant=%s voter=%s", o.Applicant, o.Voter)
}

type Fund struct {
	Airline crypto.Address
	Amount  common.Amount
}

func (Fund) Name() string { return "fund" }

func (o Fund) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	status, err := l.Fund(o.Airline, o.Amount)
	return Result{AirlineStatus: status}, err
}

func (o Fund) deposit() deposit { return deposit{from: o.Airline, amount: o.Amount} }

func (o Fund) String() string {
	return fmt.Sprintf("airline=%s amount=%s", o.Airline, o.Amount)
}

type RegisterFlight struct {
	Airline    crypto.Address
	Designator string
	Timestamp  uint64
}

func (RegisterFlight) Name() string { return "registerFlight" }

func (o RegisterFlight) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	key, err := l.RegisterFlight(o.Airline, o.Designator, o.Timestamp)
	return Result{Flight: key}, err
}

func (o RegisterFlight) String() string {
	return fmt.Sprintf("airline=%s designator=%q timestamp=%d", o.Airline, o.Designator, o.Timestamp)
}

type RegisterOracle struct {
	Oracle crypto.Address
	Fee    common.Amount
}

func (RegisterOracle) Name() string { return "registerOracle" }

func (o RegisterOracle) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	indices, err := l.RegisterOracle(o.Oracle, o.Fee)
	return Result{Indices: indices}, err
}

func (o RegisterOracle) deposit() deposit { return deposit{from: o.Oracle, amount: o.Fee} }

func (o RegisterOracle) String() string {
	return fmt.Sprintf("oracle=%s fee=%s", o.Oracle, o.Fee)
}

type RequestStatus struct {
	Flight state.FlightKey
	Caller crypto.Address
}

func (RequestStatus) Name() string { return "requestStatus" }

func (o RequestStatus) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	index, err := l.RequestStatus(o.Flight, o.Caller)
	return Result{Index: index, Flight: o.Flight}, err
}

func (o RequestStatus) String() string {
	return fmt.Sprintf("flight=%s caller=%s", o.Flight, o.Caller)
}

type SubmitResponse struct {
	Oracle crypto.Address
	Index  uint8
	Flight state.FlightKey
	Status state.FlightStatus
}

func (SubmitResponse) Name() string { return "submitResponse" }

func (o SubmitResponse) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	return Result{Index: o.Index, Flight: o.Flight}, l.SubmitResponse(o.Oracle, o.Index, o.Flight, o.Status)
}

func (o SubmitResponse) String() string {
	return fmt.Sprintf("oracle=%s index=%d flight=%s status=%s", o.Oracle, o.Index, o.Flight, o.Status)
}

type Buy struct {
	Passenger crypto.Address
	Flight    state.FlightKey
	Premium   common.Amount
}

func (Buy) Name() string { return "buy" }

func (o Buy) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	return Result{Flight: o.Flight}, l.Buy(o.Passenger, o.Flight, o.Premium)
}

func (o Buy) deposit() deposit { return deposit{from: o.Passenger, amount: o.Premium} }

func (o Buy) String() string {
	return fmt.Sprintf("passenger=%s flight=%s premium=%s", o.Passenger, o.Flight, o.Premium)
}

type CreditInsurees struct {
	Flight     state.FlightKey
	Percentage uint64
}

func (CreditInsurees) Name() string { return "creditInsurees" }

func (o CreditInsurees) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	total, err := l.CreditInsurees(o.Flight, o.Percentage)
	return Result{Flight: o.Flight, Amount: total}, err
}

func (o CreditInsurees) String() string {
	return fmt.Sprintf("flight=%s percentage=%d", o.Flight, o.Percentage)
}

type Withdraw struct {
	Passenger crypto.Address
	Caller    crypto.Address
}

func (Withdraw) Name() string { return "withdraw" }

func (o Withdraw) apply(ctx context.Context, l *ledger.Ledger) (Result, error) {
	amount, err := l.Withdraw(ctx, o.Passenger, o.Caller)
	return Result{Amount: amount}, err
}

func (o Withdraw) String() string {
	return fmt.Sprintf("passenger=%s caller=%s", o.Passenger, o.Caller)
}

// query runs a read-only function on the host goroutine.
type query struct {
	fn func(l *ledger.Ledger)
}

func (query) Name() string { return "query" }

func (q query) apply(_ context.Context, l *ledger.Ledger) (Result, error) {
	q.fn(l)
	return Result{}, nil
}
