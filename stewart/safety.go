package stewart

import (
	"fmt"
	"sync"
)

// State is the device's coarse operating state, a string-backed enum in
// the style of this codebase's other string-typed identifiers (e.g. pi's
// axis names)
type State string

const (
	// StateUnknown is the state before the device has been initialized
	// or after it has lost all information about the controller
	StateUnknown State = "UNKNOWN"
	// StateOff is the powered-down, brake-engaged idle state
	StateOff State = "OFF"
	// StateOn is ready to accept motion commands
	StateOn State = "ON"
	// StateMoving is a subtype of On for gating purposes; a motion
	// command is currently in flight
	StateMoving State = "MOVING"
	// StateFault is entered on a latched limit fault or connection loss;
	// a latched limit fault holds it until reset, while a connection-loss
	// fault also clears after a successful restore or a controller-state
	// mirror
	StateFault State = "FAULT"
)

// gateRow is the four-tuple of allow flags for one command family, one
// flag per coarse state (Moving folds into OnOrMoving)
type gateRow struct {
	Unknown    bool
	Off        bool
	OnOrMoving bool
	Fault      bool
}

func (r gateRow) allows(s State) bool {
	switch s {
	case StateUnknown:
		return r.Unknown
	case StateOff:
		return r.Off
	case StateOn, StateMoving:
		return r.OnOrMoving
	case StateFault:
		return r.Fault
	default:
		return false
	}
}

// gateMatrix is the static command-gating table of §6.3.  Command names
// are the ones used in the external interface, not Go method names, so
// the table reads the same as the specification it mirrors.
var gateMatrix = map[string]gateRow{
	"devLockVerify":     {true, true, true, true},
	"devLockQuery":      {true, true, true, true},
	"devUserConfig":     {true, true, true, true},
	"devLock":           {true, true, false, true},
	"devUnlock":         {true, true, false, true},
	"selfCheck":         {true, true, false, true},
	"init":              {true, true, false, true},
	"moveAxisSet":       {false, true, true, true},
	"structAxisSet":     {false, true, true, true},
	"movePoseAbsolute":  {false, false, true, false},
	"movePoseRelative":  {false, false, true, false},
	"singleMoveAbsolute": {false, false, true, false},
	"singleMoveRelative": {false, false, true, false},
	"openBrake":         {false, false, true, false},
	"pvt":               {false, false, true, false},
	"reset":             {false, true, true, true},
	"sixMoveZero":       {false, true, true, true},
	"singleReset":       {false, true, true, true},
	"stop":              {false, true, true, true},
	"readEncoder":       {false, true, true, true},
	"readOrg":           {false, true, true, true},
	"readEL":            {false, true, true, true},
	"readtAxis":         {false, true, true, true},
	"exportAxis":        {false, true, true, true},
}

// limitFault holds the three latched-fault fields as a single group
// invariant, guarded by its own mutex since §4 requires they are never
// read or modified independently of one another
type limitFault struct {
	mu      sync.Mutex
	Latched bool
	Axis    int // 0-5, or -1 when not latched
	ElState int // +1 = EL+, -1 = EL-, 0 = none
}

func (lf *limitFault) set(axis, elState int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Latched = true
	lf.Axis = axis
	lf.ElState = elState
}

func (lf *limitFault) clear() {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Latched = false
	lf.Axis = -1
	lf.ElState = 0
}

func (lf *limitFault) get() (latched bool, axis, elState int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.Latched, lf.Axis, lf.ElState
}

// alarmText formats the limit-fault alarm message of §6.3
func alarmText(axis, elState int) string {
	dir := "EL-"
	if elState > 0 {
		dir = "EL+"
	}
	return fmt.Sprintf("Limit switch triggered: axis %d (%s)", axis, dir)
}

// SafetyFSM owns the coarse device state, the latched limit-fault group,
// and the alarm/result bookkeeping visible to telemetry.  It does not own
// the proxies or the kinematics engine; Device composes all of these.
type SafetyFSM struct {
	mu    sync.Mutex
	state State

	fault limitFault

	alarmState  string
	resultValue int // 0 = success of last mutating command, 1 = failure
}

// NewSafetyFSM starts in StateUnknown, matching the documented lifecycle:
// the device has not yet confirmed controller state
func NewSafetyFSM() *SafetyFSM {
	return &SafetyFSM{
		state: StateUnknown,
		fault: limitFault{Axis: -1},
	}
}

// State returns the current coarse state
func (f *SafetyFSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// setState transitions the state directly, with no gating -- used by
// internal choreography (telemetry mirroring, restore, fault entry) that
// has already decided the transition is legal
func (f *SafetyFSM) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Gate checks whether command is permitted in the current state,
// returning stewart.ErrStateViolation (formatted with the command name
// and current state) if not
func (f *SafetyFSM) Gate(command string) error {
	row, ok := gateMatrix[command]
	if !ok {
		return newErr("UNKNOWN_COMMAND", "no gating rule for command %q", command)
	}
	cur := f.State()
	if !row.allows(cur) {
		return stateViolation(command, cur)
	}
	return nil
}

// LatchLimitFault records a limit-switch trigger for the given axis and
// direction, transitions to Fault, and sets the alarm text.  It does not
// itself engage the brake or stop motion -- the caller (telemetry poll)
// sequences those per §6.3's ordering (brake, then stop, then state).
func (f *SafetyFSM) LatchLimitFault(axis, elState int) {
	f.fault.set(axis, elState)
	f.mu.Lock()
	f.alarmState = alarmText(axis, elState)
	f.state = StateFault
	f.mu.Unlock()
}

// FaultLatched reports whether the limit fault is currently latched
func (f *SafetyFSM) FaultLatched() bool {
	latched, _, _ := f.fault.get()
	return latched
}

// FaultDetail returns the latched axis and direction (-1, 0 when clear)
func (f *SafetyFSM) FaultDetail() (axis, elState int) {
	_, axis, elState = f.fault.get()
	return
}

// ClearFault clears the latched triple and returns the state to On; it is
// the only operation permitted to do so
func (f *SafetyFSM) ClearFault() {
	f.fault.clear()
	f.mu.Lock()
	f.alarmState = ""
	f.state = StateOn
	f.mu.Unlock()
}

// SetResult records the outcome of the last mutating command: 0 success,
// 1 failure
func (f *SafetyFSM) SetResult(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.resultValue = 0
	} else {
		f.resultValue = 1
	}
}

// ResultValue returns the last recorded result
func (f *SafetyFSM) ResultValue() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultValue
}

// AlarmState returns the current alarm text, empty when none is active
func (f *SafetyFSM) AlarmState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alarmState
}

// SetAlarm sets the alarm text without changing state, used to report
// non-fault conditions such as "Network connection lost"
func (f *SafetyFSM) SetAlarm(text string) {
	f.mu.Lock()
	f.alarmState = text
	f.mu.Unlock()
}
