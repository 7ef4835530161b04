package extract

import "fmt"

// UnavailableError marks a backend that could not produce output (timeout,
// unreachable provider, malformed response). It is always recovered
// locally as an empty fact set and a run warning, never as a run failure.
type UnavailableError struct {
	Backend string
	Reason  string
	Refused bool // guardrail refusal rather than a transport failure
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("extraction backend %s unavailable: %s", e.Backend, e.Reason)
}
