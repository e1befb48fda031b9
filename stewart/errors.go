package stewart

import "fmt"

// StewartError is a typed command-API error carrying a short code in
// addition to its message, the way pi.GCS2Err wraps a numeric controller
// code into an error
type StewartError struct {
	Code string
	Msg  string
}

func (e *StewartError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is reports two StewartErrors equal if they carry the same code, so
// errors.Is(err, ErrStateViolation) matches any instance raised with that
// code rather than only the exact sentinel pointer.
func (e *StewartError) Is(target error) bool {
	other, ok := target.(*StewartError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// newErr builds a StewartError with the given code and a formatted message
func newErr(code, format string, args ...interface{}) *StewartError {
	return &StewartError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel command-API errors.  Callers should compare with errors.Is:
// command paths return these directly or wrap them with fmt.Errorf's %w,
// and state violations are fresh *StewartError values carrying the same
// Code, which StewartError.Is matches -- the sentinel style of
// kinematics.ErrUnreachable.
var (
	// ErrOutOfRange is returned when a target pose fails range validation
	ErrOutOfRange = &StewartError{Code: "OUT_OF_RANGE", Msg: "pose out of range"}

	// ErrUnreachable is returned when IK cannot place every leg within
	// [MinLeg, MaxLeg] for the requested pose
	ErrUnreachable = &StewartError{Code: "UNREACHABLE", Msg: "pose unreachable"}

	// ErrStateViolation is returned when a command is issued in a state
	// the gate matrix disallows
	ErrStateViolation = &StewartError{Code: "STATE_VIOLATION", Msg: "state violation"}

	// ErrLimitFaultLatched is returned when a command requiring motion is
	// issued while the limit fault is latched
	ErrLimitFaultLatched = &StewartError{Code: "LIMIT_FAULT_LATCHED", Msg: "limit fault latched, reset required"}

	// ErrProxy is returned when a downstream client call fails
	ErrProxy = &StewartError{Code: "PROXY_ERROR", Msg: "downstream proxy error"}

	// ErrInvalidJSON is returned when a PVT or config JSON payload is
	// malformed or fails shape validation
	ErrInvalidJSON = &StewartError{Code: "INVALID_JSON", Msg: "invalid JSON payload"}
)

// stateViolation formats the command-specific state violation error
// required by §6.3: "State violation: <command> blocked: <current-state>"
func stateViolation(command string, current State) error {
	return newErr("STATE_VIOLATION", "State violation: %s blocked: %s", command, current)
}
