package kinematics_test

import (
	"errors"
	"math"
	"testing"

	"github.com/nasa-jpl/stewartctl/kinematics"
)

func testGeometry() kinematics.Geometry {
	return kinematics.Geometry{
		R1:     100,
		R2:     150,
		A1:     10,
		A2:     25,
		HH:     200,
		LL:     200,
		MinLeg: 150,
		MaxLeg: 260,
	}
}

func TestHomePoseLegsAreEqual(t *testing.T) {
	k := kinematics.New(testGeometry())
	legs := k.LegLengths(kinematics.Pose{})
	for i, l := range legs {
		if math.Abs(l-legs[0]) > 1e-6 {
			t.Errorf("leg %d length %.4f differs from leg 0 length %.4f at home pose", i, l, legs[0])
		}
	}
}

func TestSolveWithinLimitsSucceeds(t *testing.T) {
	k := kinematics.New(testGeometry())
	_, err := k.Solve(kinematics.Pose{Z: 2})
	if err != nil {
		t.Errorf("expected small Z move to be reachable, got %v", err)
	}
}

func TestSolveOutOfRangeIsUnreachable(t *testing.T) {
	geom := testGeometry()
	geom.MinLeg = geom.LL - 1
	geom.MaxLeg = geom.LL + 1
	k := kinematics.New(geom)
	_, err := k.Solve(kinematics.Pose{Z: 50})
	if !errors.Is(err, kinematics.ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestReachableMatchesSolve(t *testing.T) {
	k := kinematics.New(testGeometry())
	p := kinematics.Pose{X: 1, Y: -1, Z: 2, Rx: 0.5}
	_, err := k.Solve(p)
	if (err == nil) != k.Reachable(p) {
		t.Errorf("Reachable() disagreed with Solve() for pose %+v", p)
	}
}

func TestValidatePoseRejectsOutOfRangeTranslation(t *testing.T) {
	p := kinematics.Pose{X: kinematics.PosLimit + 1}
	if err := kinematics.ValidatePose(p); err == nil {
		t.Error("expected out of range translation to fail validation")
	}
}

func TestValidatePoseRejectsOutOfRangeRotation(t *testing.T) {
	p := kinematics.Pose{Rz: kinematics.RotLimit + 1}
	if err := kinematics.ValidatePose(p); err == nil {
		t.Error("expected out of range rotation to fail validation")
	}
}

func TestValidatePoseAcceptsInRange(t *testing.T) {
	p := kinematics.Pose{X: 1, Y: -1, Z: 0.5, Rx: 1, Ry: -1, Rz: 0.1}
	if err := kinematics.ValidatePose(p); err != nil {
		t.Errorf("expected in range pose to validate, got %v", err)
	}
}

func TestPoseAddAccumulatesRelativeMoves(t *testing.T) {
	base := kinematics.Pose{X: 1, Rz: 1}
	rel := kinematics.Pose{X: 0.5, Rz: -0.25}
	sum := base.Add(rel)
	if sum.X != 1.5 || sum.Rz != 0.75 {
		t.Errorf("unexpected accumulated pose %+v", sum)
	}
}

func TestPoseArrayRoundTrip(t *testing.T) {
	p := kinematics.Pose{X: 1, Y: 2, Z: 3, Rx: 4, Ry: 5, Rz: 6}
	got := kinematics.PoseFromArray(p.Array())
	if got != p {
		t.Errorf("expected round trip through Array/PoseFromArray, got %+v want %+v", got, p)
	}
}

func TestDeltasRoundsToFourDecimals(t *testing.T) {
	target := [6]float64{1.00005, 0, 0, 0, 0, 0}
	current := [6]float64{0, 0, 0, 0, 0, 0}
	d := kinematics.Deltas(target, current)
	if d[0] != 1.0001 && d[0] != 1.0 {
		t.Errorf("expected delta rounded to 4 decimals, got %.6f", d[0])
	}
}

func TestScaleRotationLeavesTranslationUntouched(t *testing.T) {
	p := kinematics.Pose{X: 1, Y: 2, Z: 3, Rx: 4, Ry: 5, Rz: 6}
	scaled := p.ScaleRotation(2)
	if scaled.X != 1 || scaled.Y != 2 || scaled.Z != 3 {
		t.Errorf("translation changed by ScaleRotation: %+v", scaled)
	}
	if scaled.Rx != 8 || scaled.Ry != 10 || scaled.Rz != 12 {
		t.Errorf("rotation not scaled correctly: %+v", scaled)
	}
}
