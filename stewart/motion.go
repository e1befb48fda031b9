package stewart

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nasa-jpl/stewartctl/kinematics"
)

// radToDeg converts the absolute-move rotation convention: absolute pose
// rotations arrive in radians and are multiplied by 180/pi before IK.
// Relative pose rotations are passed through unchanged.  This asymmetry
// is preserved verbatim as documented reference behaviour, not corrected.
const radToDeg = 180 / math.Pi

// MovePoseRelative accumulates delta onto the last commanded pose, then
// moves every leg by the resulting per-axis pulse delta
func (d *Device) MovePoseRelative(delta kinematics.Pose) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if err := d.fsm.Gate("movePoseRelative"); err != nil {
		return d.fail(err)
	}

	target := d.sixFreedomPose.Add(delta)
	if err := kinematics.ValidatePose(target); err != nil {
		return d.fail(fmt.Errorf("%w: %v", ErrOutOfRange, err))
	}

	return d.executeMove(target)
}

// MovePoseAbsolute moves to pose directly, after converting its rotation
// components from radians to degrees (§6.1's documented unit asymmetry).
// The controller call still emits MoveRelative pulses computed from the
// delta against stored leg state, not MoveAbsolute -- preserved per the
// reference behaviour recorded in the design notes.
func (d *Device) MovePoseAbsolute(pose kinematics.Pose) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if err := d.fsm.Gate("movePoseAbsolute"); err != nil {
		return d.fail(err)
	}

	target := pose.ScaleRotation(radToDeg)
	if err := kinematics.ValidatePose(target); err != nil {
		return d.fail(fmt.Errorf("%w: %v", ErrOutOfRange, err))
	}

	return d.executeMove(target)
}

// executeMove runs steps 3-7 of §6.4's relative/absolute pose move: brake
// release, IK, per-axis delta/pulse computation, MoveRelative dispatch,
// and state update.  Simulation mode skips the brake and client calls and
// accepts the target directly.
func (d *Device) executeMove(target kinematics.Pose) error {
	targetLegs, err := d.kin.Solve(target)
	if err != nil {
		return d.fail(fmt.Errorf("%w: %v", ErrUnreachable, err))
	}

	if d.Simulation() {
		d.currentLegLengths = targetLegs
		d.sixFreedomPose = target
		d.fsm.setState(StateOn)
		d.fsm.SetResult(true)
		return nil
	}

	if d.brakeEngaged {
		d.releaseBrake()
	}

	motion := d.proxy.Motion()
	if motion == nil {
		return d.fail(ErrProxy)
	}

	deltas := kinematics.Deltas(targetLegs, d.currentLegLengths)
	d.fsm.setState(StateMoving)
	for axis := 0; axis < 6; axis++ {
		pulses := int(math.Round(d.pulsesPerMM * deltas[axis]))
		if err := motion.MoveRelative(axis, pulses); err != nil {
			d.logs.Append(fmt.Sprintf("MoveRelative axis %d failed: %v", axis, err))
			d.fsm.SetResult(false)
			return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
		}
		d.sdofState[axis] = true
	}

	d.currentLegLengths = targetLegs
	d.sixFreedomPose = target
	d.fsm.SetResult(true)
	return nil
}

// SingleMoveRelative addresses one axis directly, bypassing IK.  distance
// is in the axis's native leg-length millimetres; unit conversion to
// pulses is the caller's responsibility on this path.  sixFreedomPose is
// left stale: no forward kinematics is computed from the result.
func (d *Device) SingleMoveRelative(axis int, distance float64) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.validateAxis(axis); err != nil {
		return d.fail(err)
	}
	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if err := d.fsm.Gate("singleMoveRelative"); err != nil {
		return d.fail(err)
	}
	if d.Simulation() {
		d.currentLegLengths[axis] = round4(d.currentLegLengths[axis] + distance)
		d.fsm.SetResult(true)
		return nil
	}
	motion := d.proxy.Motion()
	if motion == nil {
		return d.fail(ErrProxy)
	}
	d.releaseBrake()
	d.fsm.setState(StateMoving)
	if err := motion.MoveRelative(axis, int(math.Round(distance))); err != nil {
		d.fsm.SetResult(false)
		return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
	}
	d.sdofState[axis] = true
	d.currentLegLengths[axis] = round4(d.currentLegLengths[axis] + distance)
	d.fsm.setState(StateOn)
	d.fsm.SetResult(true)
	return nil
}

// SingleMoveAbsolute addresses one axis directly with an absolute target
// position, bypassing IK.  As with all single-axis moves, sixFreedomPose
// is left stale: no forward kinematics is computed from the result.
func (d *Device) SingleMoveAbsolute(axis int, position float64) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.validateAxis(axis); err != nil {
		return d.fail(err)
	}
	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if err := d.fsm.Gate("singleMoveAbsolute"); err != nil {
		return d.fail(err)
	}
	if d.Simulation() {
		d.currentLegLengths[axis] = round4(position)
		d.fsm.SetResult(true)
		return nil
	}
	motion := d.proxy.Motion()
	if motion == nil {
		return d.fail(ErrProxy)
	}
	d.releaseBrake()
	d.fsm.setState(StateMoving)
	if err := motion.MoveAbsolute(axis, int(math.Round(position))); err != nil {
		d.fsm.SetResult(false)
		return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
	}
	d.sdofState[axis] = true
	d.currentLegLengths[axis] = round4(position)
	d.fsm.setState(StateOn)
	d.fsm.SetResult(true)
	return nil
}

// PVTSpec is the PVT trajectory input of §7: poses, times, and optional
// velocities, one array entry per segment point
type PVTSpec struct {
	Poses      [][6]float64 `json:"poses"`
	Times      []float64    `json:"times"`
	Velocities [][6]float64 `json:"velocities,omitempty"`
}

// validate checks the PVT input shape invariants: at least two points,
// equal-length poses/times, and (if present) equal-length velocities
func (s PVTSpec) validate() error {
	n := len(s.Poses)
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidJSON, n)
	}
	if len(s.Times) != n {
		return fmt.Errorf("%w: times length %d does not match poses length %d", ErrInvalidJSON, len(s.Times), n)
	}
	if s.Velocities != nil && len(s.Velocities) != n {
		return fmt.Errorf("%w: velocities length %d does not match poses length %d", ErrInvalidJSON, len(s.Velocities), n)
	}
	return nil
}

// pvtPayload is the wire shape sent to the motion controller's SetPvts:
// per-axis arrays of position, velocity, and time
type pvtPayload struct {
	Axes  [6]int        `json:"axes"`
	Count int           `json:"count"`
	Time  []float64     `json:"time"`
	Pos   [6][]float64  `json:"pos"`
	Vel   [6][]float64  `json:"vel"`
}

// MovePVT builds and dispatches a PVT trajectory per §6.4: absolute leg
// lengths via IK for every pose, converted to a trajectory relative to
// point 0, with velocities synthesized by forward/central/backward
// difference when not supplied.
func (d *Device) MovePVT(spec PVTSpec) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if err := d.fsm.Gate("pvt"); err != nil {
		return d.fail(err)
	}
	if err := spec.validate(); err != nil {
		return d.fail(err)
	}

	n := len(spec.Poses)
	absLegs := make([][6]float64, n)
	for i, p := range spec.Poses {
		pose := kinematics.PoseFromArray(p).ScaleRotation(radToDeg)
		if err := kinematics.ValidatePose(pose); err != nil {
			return d.fail(fmt.Errorf("%w: point %d: %v", ErrOutOfRange, i, err))
		}
		legs, err := d.kin.Solve(pose)
		if err != nil {
			return d.fail(fmt.Errorf("%w: point %d: %v", ErrUnreachable, i, err))
		}
		absLegs[i] = legs
	}

	relLegs := make([][6]float64, n)
	for i := 0; i < n; i++ {
		for axis := 0; axis < 6; axis++ {
			relLegs[i][axis] = round4(absLegs[i][axis] - absLegs[0][axis])
		}
	}

	vel := spec.Velocities
	if vel == nil {
		vel = synthesizeVelocities(relLegs, spec.Times)
	}

	payload := pvtPayload{Count: n, Time: spec.Times}
	for axis := 0; axis < 6; axis++ {
		payload.Axes[axis] = axis
		payload.Pos[axis] = make([]float64, n)
		payload.Vel[axis] = make([]float64, n)
		for i := 0; i < n; i++ {
			payload.Pos[axis][i] = relLegs[i][axis]
			payload.Vel[axis][i] = vel[i][axis]
		}
	}

	if d.Simulation() {
		d.currentLegLengths = absLegs[n-1]
		d.sixFreedomPose = kinematics.PoseFromArray(spec.Poses[n-1]).ScaleRotation(radToDeg)
		for axis := range d.sdofState {
			d.sdofState[axis] = true
		}
		d.fsm.setState(StateOn)
		d.fsm.SetResult(true)
		return nil
	}

	motion := d.proxy.Motion()
	if motion == nil {
		return d.fail(ErrProxy)
	}
	d.releaseBrake()

	body, err := json.Marshal(payload)
	if err != nil {
		return d.fail(fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}
	if err := motion.SetPvts(body); err != nil {
		d.fsm.SetResult(false)
		return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
	}
	axes := []int{0, 1, 2, 3, 4, 5}
	d.fsm.setState(StateMoving)
	if err := motion.MovePvts(axes); err != nil {
		d.fsm.SetResult(false)
		return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
	}

	for axis := range d.sdofState {
		d.sdofState[axis] = true
	}
	d.currentLegLengths = absLegs[n-1]
	d.sixFreedomPose = kinematics.PoseFromArray(spec.Poses[n-1]).ScaleRotation(radToDeg)
	d.fsm.SetResult(true)
	return nil
}

// synthesizeVelocities computes per-point, per-axis velocity with forward
// difference at the first point, backward difference at the last, and
// central difference in between, matching §6.4 step 5
func synthesizeVelocities(legs [][6]float64, times []float64) [][6]float64 {
	n := len(legs)
	vel := make([][6]float64, n)
	for axis := 0; axis < 6; axis++ {
		for i := 0; i < n; i++ {
			switch {
			case i == 0:
				dt := times[1] - times[0]
				vel[i][axis] = (legs[1][axis] - legs[0][axis]) / dt
			case i == n-1:
				dt := times[i] - times[i-1]
				vel[i][axis] = (legs[i][axis] - legs[i-1][axis]) / dt
			default:
				dt := times[i+1] - times[i-1]
				vel[i][axis] = (legs[i+1][axis] - legs[i-1][axis]) / dt
			}
		}
	}
	return vel
}

// Stop issues StopMove on all six axes, clears the busy flags, and
// returns to On unless a fault is latched.  It does not engage the
// brake, letting consecutive moves proceed without a brake cycle.
func (d *Device) Stop() error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.fsm.Gate("stop"); err != nil {
		return d.fail(err)
	}
	if !d.Simulation() {
		if motion := d.proxy.Motion(); motion != nil {
			for axis := 0; axis < 6; axis++ {
				motion.StopMove(axis)
			}
		}
	}
	d.sdofState = [6]bool{}
	if d.fsm.FaultLatched() {
		d.fsm.setState(StateFault)
	} else {
		d.fsm.setState(StateOn)
	}
	d.fsm.SetResult(true)
	return nil
}

// SixMoveZero issues MoveZero on every axis, rejecting if the limit
// fault is latched
func (d *Device) SixMoveZero() error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.fsm.Gate("sixMoveZero"); err != nil {
		return d.fail(err)
	}
	if d.fsm.FaultLatched() {
		return d.fail(ErrLimitFaultLatched)
	}
	if !d.Simulation() {
		motion := d.proxy.Motion()
		if motion == nil {
			return d.fail(ErrProxy)
		}
		for axis := 0; axis < 6; axis++ {
			motion.MoveZero(axis)
		}
	}
	for axis := range d.currentLegLengths {
		d.currentLegLengths[axis] = d.geom.LL
	}
	d.sixFreedomPose = kinematics.Pose{}
	d.fsm.SetResult(true)
	return nil
}

// Reset engages the brake defensively, resets every axis, and clears the
// latched fault triple, returning the state to On
func (d *Device) Reset() error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.fsm.Gate("reset"); err != nil {
		return d.fail(err)
	}
	d.engageBrake()
	if !d.Simulation() {
		if motion := d.proxy.Motion(); motion != nil {
			for axis := 0; axis < 6; axis++ {
				motion.Reset(axis)
			}
		}
	}
	d.fsm.ClearFault()
	d.fsm.SetResult(true)
	return nil
}

// SingleReset resets one axis and, if the latched fault was set, also
// clears it -- the documented escape hatch of §6.4
func (d *Device) SingleReset(axis int) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.validateAxis(axis); err != nil {
		return d.fail(err)
	}
	if err := d.fsm.Gate("singleReset"); err != nil {
		return d.fail(err)
	}
	if !d.Simulation() {
		if motion := d.proxy.Motion(); motion != nil {
			if err := motion.Reset(axis); err != nil {
				d.fsm.SetResult(false)
				return d.fail(fmt.Errorf("%w: %v", ErrProxy, err))
			}
		}
	}
	if d.fsm.FaultLatched() {
		d.fsm.ClearFault()
	}
	d.fsm.SetResult(true)
	return nil
}

// OpenBrake releases the brake explicitly, gated the same as a motion
// command since it is only meaningful while On/Moving
func (d *Device) OpenBrake() error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if err := d.fsm.Gate("openBrake"); err != nil {
		return d.fail(err)
	}
	ok := d.releaseBrake()
	d.fsm.SetResult(ok)
	if !ok {
		return d.fail(ErrProxy)
	}
	return nil
}

// validateAxis rejects an axis index outside 0..5
func (d *Device) validateAxis(axis int) error {
	if axis < 0 || axis > 5 {
		return fmt.Errorf("%w: axis %d out of range 0-5", ErrOutOfRange, axis)
	}
	return nil
}

// fail records a failed command result and returns err unchanged, the
// single choke point every command-layer error path runs through
func (d *Device) fail(err error) error {
	d.fsm.SetResult(false)
	return err
}
