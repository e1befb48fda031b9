package stewart_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nasa-jpl/stewartctl/kinematics"
	"github.com/nasa-jpl/stewartctl/stewart"
)

// scenarioDevice builds a simulation-mode device with the reference
// geometry of end-to-end scenario 1
func scenarioDevice(t *testing.T) *stewart.Device {
	t.Helper()
	cfg := stewart.DefaultConfig()
	cfg.System.Simulation = true
	cfg.SdofConfig = `{"r1":110,"r2":193,"hh":408,"a1":40,"a2":14,"h":0,"h3":0,"ll":421.4857}`
	cfg.MinLeg = 0
	cfg.MaxLeg = 1000
	dev, err := stewart.NewDevice(cfg)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return dev
}

func TestAbsolutePoseToZero(t *testing.T) {
	dev := scenarioDevice(t)
	if err := dev.MovePoseAbsolute(kinematics.Pose{}); err != nil {
		t.Fatalf("MovePoseAbsolute to zero failed: %v", err)
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after move completes, got %s", dev.State())
	}
	snap := dev.Snapshot()
	want := [6]float64{}
	if diff := cmp.Diff(want, snap.SixFreedomPose); diff != "" {
		t.Errorf("unexpected sixFreedomPose (-want +got):\n%s", diff)
	}
}

func TestOutOfRangeTranslationRejected(t *testing.T) {
	dev := scenarioDevice(t)
	before := dev.Snapshot()
	err := dev.MovePoseAbsolute(kinematics.Pose{X: kinematics.PosLimit + 1})
	if !errors.Is(err, stewart.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	after := dev.Snapshot()
	if after.ResultValue != 1 {
		t.Errorf("expected resultValue 1 after rejected move, got %d", after.ResultValue)
	}
	if before.State != after.State {
		t.Errorf("expected state unchanged by rejected move")
	}
}

func TestStopClearsBusyFlagsAndReturnsToOn(t *testing.T) {
	dev := scenarioDevice(t)
	if err := dev.MovePoseRelative(kinematics.Pose{Z: 1}); err != nil {
		t.Fatalf("MovePoseRelative: %v", err)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	snap := dev.Snapshot()
	for i, busy := range snap.SdofState {
		if busy {
			t.Errorf("expected sdofState[%d] cleared after Stop", i)
		}
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after Stop, got %s", dev.State())
	}
}

func TestSingleAxisMoveBypassesIK(t *testing.T) {
	dev := scenarioDevice(t)
	if err := dev.SingleMoveRelative(0, 1.5); err != nil {
		t.Fatalf("SingleMoveRelative: %v", err)
	}
	snap := dev.Snapshot()
	if snap.DirePos[0] != 421.4857+1.5 {
		t.Errorf("expected leg 0 length updated by 1.5mm, got %f", snap.DirePos[0])
	}
}

func TestPVTThreePointTrajectory(t *testing.T) {
	dev := scenarioDevice(t)
	spec := stewart.PVTSpec{
		Poses: [][6]float64{
			{0, 0, 0, 0, 0, 0},
			{1, 0, 0, 0, 0, 0},
			{1, 1, 0, 0, 0, 0},
		},
		Times: []float64{0, 1, 2},
	}
	if err := dev.MovePVT(spec); err != nil {
		t.Fatalf("MovePVT: %v", err)
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after PVT completes in simulation, got %s", dev.State())
	}
}

func TestPVTRejectsTooFewPoints(t *testing.T) {
	dev := scenarioDevice(t)
	spec := stewart.PVTSpec{
		Poses: [][6]float64{{0, 0, 0, 0, 0, 0}},
		Times: []float64{0},
	}
	err := dev.MovePVT(spec)
	if !errors.Is(err, stewart.ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON for single-point PVT spec, got %v", err)
	}
}

func TestResetLeavesDeviceOn(t *testing.T) {
	dev := scenarioDevice(t)
	if err := dev.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after Reset, got %s", dev.State())
	}
}

func TestSimulationModeNeverGoesUnhealthy(t *testing.T) {
	dev := scenarioDevice(t)
	for i := 0; i < 5; i++ {
		if err := dev.MovePoseRelative(kinematics.Pose{Z: 0.1}); err != nil {
			t.Fatalf("MovePoseRelative iteration %d: %v", i, err)
		}
	}
	snap := dev.Snapshot()
	if snap.State == stewart.StateFault {
		t.Errorf("simulation mode should never enter Fault from these commands")
	}
}
