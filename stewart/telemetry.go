package stewart

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/stewartctl/util"
)

// LogRing is a fixed-capacity, time-stamped event ring buffer backing the
// sixLogs telemetry attribute.  It is not durable across restarts; the
// capacity is a local design choice (256), not named by the distilled
// specification.
type LogRing struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
	next     int
	full     bool
}

// LogEntry is one ring-buffer record
type LogEntry struct {
	Time time.Time
	Text string
}

// NewLogRing builds a ring of the given fixed capacity
func NewLogRing(capacity int) *LogRing {
	return &LogRing{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Append adds a new entry, overwriting the oldest once the ring is full
func (r *LogRing) Append(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = LogEntry{Time: time.Now(), Text: text}
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the entries in chronological order, oldest first
func (r *LogRing) Snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]LogEntry, r.capacity)
	copy(out, r.entries[r.next:])
	copy(out[r.capacity-r.next:], r.entries[:r.next])
	return out
}

// poll is the periodic attribute-read hook of §6.5: invoked once at the
// top of Snapshot and ReadEncoders, not on a dedicated goroutine.  The
// GET /state and GET /logs handlers do not run it.
func (d *Device) poll() {
	if d.proxy.RestorePending() {
		d.runRestoreWithRetry()
	}

	if !d.proxy.Healthy() && d.fsm.State() == StateOn {
		d.engageBrake()
		d.fsm.setState(StateFault)
		d.fsm.SetAlarm("Network connection lost")
		return
	}

	if d.fsm.State() == StateMoving {
		d.checkLimits()
	}

	if d.fsm.FaultLatched() {
		return
	}
	d.mirrorControllerState()
}

// runRestoreWithRetry executes runRestore, bumping the retry counter on
// failure and giving up after MaxRestoreRetries per §6.2/§8
func (d *Device) runRestoreWithRetry() {
	err := d.runRestore()
	d.logRestoreOutcome(err)
	if err == nil {
		d.proxy.clearRestorePending()
		atomic.StoreInt32(&d.proxy.connectionHealthy, 1)
		d.fsm.SetAlarm("")
		if d.fsm.State() == StateFault && !d.fsm.FaultLatched() {
			d.fsm.setState(StateOn)
		}
		return
	}
	if d.proxy.bumpRestoreRetryCount() >= MaxRestoreRetries {
		d.proxy.clearRestorePending()
		d.logs.Append("restore abandoned after max retries")
	}
}

// checkLimits queries ReadEL on every axis while Moving and applies the
// latched-fault logic of §6.3: brake, stop-all, fault transition
func (d *Device) checkLimits() {
	motion := d.proxy.Motion()
	if motion == nil {
		return
	}
	for axis := 0; axis < 6; axis++ {
		el, err := motion.ReadEL(axis)
		if err != nil {
			continue
		}
		d.limOrgState[axis] = elToOrgState(el)
		if el != 0 && !d.fsm.FaultLatched() {
			d.engageBrake()
			for a := 0; a < 6; a++ {
				motion.StopMove(a)
			}
			d.sdofState = [6]bool{}
			d.fsm.LatchLimitFault(axis, el)
			return
		}
	}
}

// elToOrgState maps a raw ReadEL return (-1, 0, 1) to the limOrgState
// attribute convention {0 = at origin, 1 = EL+, -1 = EL-, 2 = not at origin}.
// Origin detection is not separately modeled here, so any non-triggered
// axis reports "not at origin" (2) rather than "at origin" (0); a real
// origin sensor would refine this.
func elToOrgState(el int) int {
	switch el {
	case 1:
		return 1
	case -1:
		return -1
	default:
		return 2
	}
}

// mirrorControllerState mirrors the motion controller's reported state
// into the device state when no other condition fired this poll
func (d *Device) mirrorControllerState() {
	motion := d.proxy.Motion()
	if motion == nil {
		return
	}
	reported, err := motion.State(0)
	if err != nil {
		return
	}
	switch reported {
	case StateMoving:
		d.fsm.setState(StateMoving)
	case StateFault:
		d.fsm.setState(StateFault)
	default:
		if d.fsm.State() != StateFault || !d.fsm.FaultLatched() {
			d.fsm.setState(StateOn)
		}
	}
}

// ReadEncoders reads every configured channel from the encoder client,
// updating axisPos and currentLegLengths on success; a failed axis
// retains its last-known value independently of the others.
func (d *Device) ReadEncoders() ([6]float64, error) {
	d.poll()
	encoder := d.proxy.Encoder()
	if encoder == nil {
		return d.axisPos, ErrProxy
	}
	var errs []error
	for axis := 0; axis < 6; axis++ {
		channel := d.encoderChannels[axis]
		v, err := encoder.ReadEncoder(channel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		d.axisPos[axis] = round4(v)
		d.currentLegLengths[axis] = round4(v)
	}
	return d.axisPos, util.MergeErrors(errs)
}

// Telemetry is the aggregate snapshot returned by GET /pose and friends
type Telemetry struct {
	AxisPos           [6]float64 `json:"axisPos"`
	DirePos           [6]float64 `json:"direPos"`
	SixFreedomPose    [6]float64 `json:"sixFreedomPose"`
	LimOrgState       [6]int     `json:"limOrgState"`
	SdofState         [6]bool    `json:"sdofState"`
	AlarmState        string     `json:"alarmState"`
	ResultValue       int        `json:"resultValue"`
	DriverPowerStatus bool       `json:"driverPowerStatus"`
	BrakeStatus       bool       `json:"brakeStatus"`
	OpenBrakeState    bool       `json:"openBrakeState"`
	State             State      `json:"state"`
}

// Snapshot assembles the current Telemetry, running poll first so the
// reported state reflects any restore/fault bookkeeping due this cycle
func (d *Device) Snapshot() Telemetry {
	d.poll()
	return Telemetry{
		AxisPos:           d.axisPos,
		DirePos:           d.currentLegLengths,
		SixFreedomPose:    d.sixFreedomPose.Array(),
		LimOrgState:       d.limOrgState,
		SdofState:         d.sdofState,
		AlarmState:        d.fsm.AlarmState(),
		ResultValue:       d.fsm.ResultValue(),
		DriverPowerStatus: d.driverPowerEnabled,
		BrakeStatus:       d.brakeEngaged,
		OpenBrakeState:    !d.brakeEngaged,
		State:             d.fsm.State(),
	}
}

// Logs returns the current sixLogs snapshot, oldest first
func (d *Device) Logs() []LogEntry {
	return d.logs.Snapshot()
}
