package host

import (
	"errors"
	"fmt"
)

var ErrHostStopped = errors.New("host stopped")

// OpError reports a rejected operation together with its arguments.
type OpError struct {
	Op   string
	Args Operation
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s(%v): %v", e.Op, e.Args, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
