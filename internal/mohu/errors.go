package mohu

import (
	"fmt"
)

// Step names a position in the address cascade.
type Step string

const (
	StepInit     Step = "init"
	StepDistrict Step = "district"
	StepStreet   Step = "street"
	StepHouse    Step = "house"
	StepResult   Step = "result"
)

// AddressResolutionError reports that the query for one cascade step did not
// match any option offered by the site. Err is the underlying
// [*fragment.NoMatchError].
type AddressResolutionError struct {
	Step Step
	Err  error
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Step, e.Err)
}

func (e *AddressResolutionError) Unwrap() error { return e.Err }

// TransportError reports a network or HTTP-level failure. StatusCode is zero
// when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected HTTP status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
