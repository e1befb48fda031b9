// Package kinematics solves the inverse kinematics of a six-leg Stewart
// platform: given a target pose, it produces the six leg lengths needed
// to reach it.  Forward kinematics (leg lengths back to a pose) is not
// solved; see the design notes in the owning repository.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/nasa-jpl/stewartctl/mathx"
	"github.com/nasa-jpl/stewartctl/util"
)

const (
	// PosLimit is the largest magnitude, in millimeters, any translation
	// component of a pose may take
	PosLimit = 17.0

	// RotLimit is the largest magnitude, in degrees, any rotation
	// component of a pose may take
	RotLimit = 4.0

	// legRound is the rounding unit applied to every leg length and
	// delta; it is not cosmetic, it defines the equivalence classes used
	// for idempotence of repeated moves
	legRound = 1e-4
)

// ErrUnreachable is returned when a requested pose produces at least one
// leg length outside [MinLeg, MaxLeg]
var ErrUnreachable = errors.New("unreachable pose")

// Pose is a six degree of freedom target: three translations in
// millimeters and three intrinsic Z-Y-X Euler rotations in degrees
type Pose struct {
	X, Y, Z    float64
	Rx, Ry, Rz float64
}

// Array returns the pose as the canonical [x,y,z,rx,ry,rz] ordering
func (p Pose) Array() [6]float64 {
	return [6]float64{p.X, p.Y, p.Z, p.Rx, p.Ry, p.Rz}
}

// PoseFromArray builds a Pose from the canonical [x,y,z,rx,ry,rz] ordering
func PoseFromArray(a [6]float64) Pose {
	return Pose{X: a[0], Y: a[1], Z: a[2], Rx: a[3], Ry: a[4], Rz: a[5]}
}

// Add returns the element-wise sum of two poses, used to accumulate a
// relative move onto the last commanded pose
func (p Pose) Add(o Pose) Pose {
	return Pose{
		X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z,
		Rx: p.Rx + o.Rx, Ry: p.Ry + o.Ry, Rz: p.Rz + o.Rz,
	}
}

// ScaleRotation multiplies only the rotational components by k, leaving
// the translation untouched.  This is the hook used to replicate the
// degrees/radians asymmetry between absolute and relative pose moves.
func (p Pose) ScaleRotation(k float64) Pose {
	p.Rx *= k
	p.Ry *= k
	p.Rz *= k
	return p
}

// ValidatePose checks the range invariants of §4: |xyz| <= PosLimit and
// |rotation| <= RotLimit.  It is applied to the fully accumulated target
// pose, never to individual axes of a command.
func ValidatePose(p Pose) error {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.Abs(v) > PosLimit {
			return fmt.Errorf("translation %.4f exceeds limit of %.1f mm", v, PosLimit)
		}
	}
	for _, v := range [3]float64{p.Rx, p.Ry, p.Rz} {
		if math.Abs(v) > RotLimit {
			return fmt.Errorf("rotation %.4f exceeds limit of %.1f deg", v, RotLimit)
		}
	}
	return nil
}

// Geometry describes the physical dimensions of a Stewart platform: base
// and platform hinge radii and half-angles, plate separation, and the
// leg length envelope.  It is loaded once from the sdofConfig JSON blob
// and is immutable for the life of the device.
type Geometry struct {
	// R1 is the platform (moving plate) hinge radius, mm
	R1 float64
	// R2 is the base (fixed plate) hinge radius, mm
	R2 float64
	// A1 is the platform half-angle between adjacent hinge pairs, degrees
	A1 float64
	// A2 is the base half-angle between adjacent hinge pairs, degrees
	A2 float64
	// HH is the nominal plate separation, mm
	HH float64
	// H is a target-offset distance, mm (carried for downstream use, not
	// consumed directly by the IK solver below)
	H float64
	// H3 is a second target-offset distance, mm
	H3 float64
	// LL is the nominal leg length, mm; it seeds all six stored leg
	// lengths at construction
	LL float64
	// MinLeg and MaxLeg bound reachable leg lengths, mm
	MinLeg, MaxLeg float64
}

// Kinematics is the inverse-kinematics engine for one fixed Geometry.  It
// is immutable once constructed; a geometry change requires building a
// new Kinematics, exactly as the owning device rebuilds it at init only.
type Kinematics struct {
	geom Geometry

	// platformHinges are the six hinge points in the moving (platform)
	// frame, fixed for the life of the engine
	platformHinges [6]r3.Vector

	// baseHinges are the six hinge points in the fixed (base) frame
	baseHinges [6]r3.Vector

	// legRange bounds a single leg length to [MinLeg, MaxLeg]
	legRange util.Limiter
}

// New builds a Kinematics engine for the given geometry, precomputing the
// twelve hinge coordinates from (r1, r2, a1, a2)
func New(geom Geometry) *Kinematics {
	k := &Kinematics{geom: geom}
	k.platformHinges = hingeRing(geom.R1, geom.A1)
	k.baseHinges = hingeRing(geom.R2, geom.A2)
	k.legRange = util.Limiter{Min: geom.MinLeg, Max: geom.MaxLeg}
	return k
}

// Geometry returns the geometry this engine was built from
func (k *Kinematics) Geometry() Geometry {
	return k.geom
}

// hingeRing lays out six hinge points evenly around a circle of the given
// radius, in pairs straddling every 120 degrees, offset by the given
// half-angle -- the conventional Stewart-platform hinge arrangement.
func hingeRing(radius, halfAngleDeg float64) [6]r3.Vector {
	var pts [6]r3.Vector
	halfAngle := halfAngleDeg * math.Pi / 180
	for pair := 0; pair < 3; pair++ {
		center := float64(pair) * (2 * math.Pi / 3)
		a0 := center - halfAngle
		a1 := center + halfAngle
		pts[2*pair] = r3.Vector{X: radius * math.Cos(a0), Y: radius * math.Sin(a0), Z: 0}
		pts[2*pair+1] = r3.Vector{X: radius * math.Cos(a1), Y: radius * math.Sin(a1), Z: 0}
	}
	return pts
}

// Matrix3 is a row-major 3x3 rotation matrix.  golang/geo's r3 package has
// no general rotation type (only axis-angle helpers unsuited to intrinsic
// Euler composition), so this one piece of linear algebra is hand rolled.
type Matrix3 [3][3]float64

// Apply rotates v by m
func (m Matrix3) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// eulerZYX builds the rotation matrix for intrinsic Z-Y-X Euler angles
// (rz, ry, rx), all in degrees, matching the convention IK uses to pose
// the platform hinges
func eulerZYX(rzDeg, ryDeg, rxDeg float64) Matrix3 {
	rz := rzDeg * math.Pi / 180
	ry := ryDeg * math.Pi / 180
	rx := rxDeg * math.Pi / 180

	cz, sz := math.Cos(rz), math.Sin(rz)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cx, sx := math.Cos(rx), math.Sin(rx)

	// Rz * Ry * Rx
	return Matrix3{
		{cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx},
		{sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx},
		{-sy, cy * sx, cy * cx},
	}
}

// LegLengths computes the six leg lengths for the given pose, without any
// reachability check
func (k *Kinematics) LegLengths(p Pose) [6]float64 {
	rot := eulerZYX(p.Rz, p.Ry, p.Rx)
	translate := r3.Vector{X: p.X, Y: p.Y, Z: p.Z + k.geom.HH}

	var legs [6]float64
	for i := 0; i < 6; i++ {
		platform := rot.Apply(k.platformHinges[i]).Add(translate)
		leg := platform.Sub(k.baseHinges[i])
		legs[i] = mathx.Round(leg.Norm(), legRound)
	}
	return legs
}

// Solve computes the six leg lengths for pose p and checks that every one
// lies within [MinLeg, MaxLeg], returning ErrUnreachable otherwise
func (k *Kinematics) Solve(p Pose) ([6]float64, error) {
	legs := k.LegLengths(p)
	for i, l := range legs {
		if !k.legRange.Check(l) {
			return legs, fmt.Errorf("%w: leg %d length %.4f outside [%.4f, %.4f]",
				ErrUnreachable, i, l, k.geom.MinLeg, k.geom.MaxLeg)
		}
	}
	return legs, nil
}

// Reachable reports whether p produces six leg lengths within range,
// without erroring -- the P5 round-trip property of ValidatePose <=> IK
// success is exercised through this and Solve together.
func (k *Kinematics) Reachable(p Pose) bool {
	_, err := k.Solve(p)
	return err == nil
}

// Deltas computes, for a target pose and the currently stored leg
// lengths, the per-leg delta (target - current), each rounded to the
// same 4-decimal equivalence class as stored leg state
func Deltas(target, current [6]float64) [6]float64 {
	var d [6]float64
	for i := range d {
		d[i] = mathx.Round(target[i]-current[i], legRound)
	}
	return d
}
