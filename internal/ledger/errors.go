package ledger

import (
	"errors"

	"github.com/eigerco/surety/internal/admission"
)

var (
	ErrNotOperational            = errors.New("ledger is not operational")
	ErrAuthorization             = errors.New("caller is not authorized")
	ErrDuplicateFlight           = errors.New("flight already registered")
	ErrDuplicatePolicy           = errors.New("passenger already insured for this flight")
	ErrPremiumCapExceeded        = errors.New("premium must be above zero and at most the cap")
	ErrFlightAlreadyResolved     = errors.New("flight status already resolved")
	ErrInsufficientFee           = errors.New("oracle registration fee too low")
	ErrNothingToWithdraw         = errors.New("nothing to withdraw")
	ErrAirlineNotFunded          = errors.New("airline is not funded")
	ErrInvalidDesignator         = errors.New("flight designator is empty")
	ErrOracleAlreadyRegistered   = errors.New("oracle already registered")
	ErrFlightNotFound            = errors.New("flight not found")
	ErrRequestNotFound           = errors.New("status request not found")
	ErrInvalidStatusCode         = errors.New("invalid flight status code")
	ErrFlightNotDelayedByAirline = errors.New("flight is not delayed by the airline")
	ErrInvalidPayoutPercentage   = errors.New("payout percentage must be above zero")
	ErrTransferFailed            = errors.New("value transfer failed")
)

// Admission errors are decided in the admission package and surface unchanged.
var (
	ErrDuplicateVote            = admission.ErrDuplicateVote
	ErrAlreadyApplied           = admission.ErrAlreadyApplied
	ErrAirlineAlreadyRegistered = admission.ErrAlreadyAdmitted
	ErrNotPending               = admission.ErrNotPending
	ErrAirlineNotRegistered     = admission.ErrNotAdmitted
	ErrInsufficientFunding      = admission.ErrInsufficientFunding
)
