// Package stewart implements the proxy supervisor, safety state machine,
// motion command layer, and telemetry layer of a six-leg Stewart-platform
// target-positioning device, wrapping a kinematics.Kinematics engine with
// fault-tolerant downstream RPC and an HTTP-facing command/attribute
// surface.
package stewart

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/nasa-jpl/stewartctl/kinematics"
	"github.com/nasa-jpl/stewartctl/mathx"
	"github.com/nasa-jpl/stewartctl/util"
)

// sdofConfig is the JSON shape of the platform-geometry blob named in the
// external interface: r1, r2, hh, a1, a2, h, h3, ll
type sdofConfig struct {
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	HH float64 `json:"hh"`
	A1 float64 `json:"a1"`
	A2 float64 `json:"a2"`
	H  float64 `json:"h"`
	H3 float64 `json:"h3"`
	LL float64 `json:"ll"`
}

// parseGeometry decodes the sdofConfig JSON blob into a kinematics.Geometry,
// using the configured min/max leg length envelope
func parseGeometry(raw string, minLeg, maxLeg float64) (kinematics.Geometry, error) {
	var sc sdofConfig
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return kinematics.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return kinematics.Geometry{
		R1: sc.R1, R2: sc.R2, HH: sc.HH, A1: sc.A1, A2: sc.A2,
		H: sc.H, H3: sc.H3, LL: sc.LL,
		MinLeg: minLeg, MaxLeg: maxLeg,
	}, nil
}

// Device is the core Stewart-platform control object: it composes the
// kinematics engine, the proxy supervisor, the safety FSM, and the
// per-axis state that the motion and telemetry layers mutate.
type Device struct {
	cfg  Config
	kin  *kinematics.Kinematics
	geom kinematics.Geometry

	proxy *ProxySupervisor
	fsm   *SafetyFSM

	// cmdMu serializes command execution; only one motion command
	// sequence runs at a time.  Telemetry reads do not take this lock,
	// matching §9's tolerance for torn per-element reads.
	cmdMu sync.Mutex

	currentLegLengths [6]float64
	axisPos           [6]float64
	sixFreedomPose    kinematics.Pose
	sdofState         [6]bool
	limOrgState       [6]int

	brakeEngaged       bool
	driverPowerEnabled bool

	encoderChannels [6]int

	pulsesPerMM float64

	logs *LogRing

	cancel context.CancelFunc
}

// NewDevice constructs a Device from cfg: it parses the platform geometry,
// builds the kinematics engine, seeds the stored leg lengths at the
// nominal length, and (unless in simulation mode) starts the proxy
// supervisor's background monitor goroutine.
func NewDevice(cfg Config) (*Device, error) {
	geom, err := parseGeometry(cfg.SdofConfig, cfg.MinLeg, cfg.MaxLeg)
	if err != nil {
		return nil, err
	}
	kin := kinematics.New(geom)

	d := &Device{
		cfg:             cfg,
		kin:             kin,
		geom:            geom,
		fsm:             NewSafetyFSM(),
		encoderChannels: cfg.EncoderChannels,
		pulsesPerMM:     pulsesPerMM(cfg.MotorStepAngle, cfg.MotorGearRatio, cfg.MotorSubdivision),
		logs:            NewLogRing(256),
	}
	for i := range d.currentLegLengths {
		d.currentLegLengths[i] = geom.LL
		d.axisPos[i] = geom.LL
		d.limOrgState[i] = 2 // not at origin, matching the documented default
	}

	motionTransport := TransportConfig{Addr: cfg.MotionControllerAddr, SerialPort: cfg.MotionSerialPort, SerialBaud: cfg.MotionSerialBaud}
	encoderTransport := TransportConfig{Addr: cfg.EncoderAddr, SerialPort: cfg.EncoderSerialPort, SerialBaud: cfg.EncoderSerialBaud}
	d.proxy = NewProxySupervisor(motionTransport, encoderTransport,
		util.SecsToDuration(float64(cfg.System.ReconnectIntervalSec)), cfg.System.Simulation)

	if cfg.System.Simulation {
		d.fsm.setState(StateOn)
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		go d.proxy.Run(ctx)
	}

	return d, nil
}

// Shutdown engages the brake (per the automatic brake policy) and cancels
// the background monitor goroutine's context; it does not wait for the
// goroutine to return
func (d *Device) Shutdown() {
	d.engageBrake()
	if d.cancel != nil {
		d.cancel()
	}
}

// State returns the device's current coarse state
func (d *Device) State() State {
	return d.fsm.State()
}

// Simulation reports whether the device is running without real hardware
func (d *Device) Simulation() bool {
	return d.cfg.System.Simulation
}

// powerClient returns the MotionClient to use for driver-power and brake
// WriteIO calls: always the motion handle.  The configured power/brake
// controller names are not consulted, and no separate power-controller
// connection is opened.
func (d *Device) powerClient() MotionClient {
	return d.proxy.Motion()
}

// engageBrake is a best-effort operation: failures are swallowed into
// state, matching pi/mock.go's style for internal choreography
func (d *Device) engageBrake() bool {
	if d.cfg.BrakePowerPort < 0 {
		d.brakeEngaged = true
		return true
	}
	client := d.powerClient()
	if client == nil {
		return false
	}
	if err := client.WriteIO(d.cfg.BrakePowerPort, false); err != nil {
		d.logs.Append("error engaging brake: " + err.Error())
		return false
	}
	d.brakeEngaged = true
	return true
}

// releaseBrake is the counterpart of engageBrake, also best-effort
func (d *Device) releaseBrake() bool {
	if d.cfg.BrakePowerPort < 0 {
		d.brakeEngaged = false
		return true
	}
	client := d.powerClient()
	if client == nil {
		return false
	}
	if err := client.WriteIO(d.cfg.BrakePowerPort, true); err != nil {
		d.logs.Append("error releasing brake: " + err.Error())
		return false
	}
	d.brakeEngaged = false
	return true
}

func (d *Device) enableDriverPower() bool {
	if d.cfg.DriverPowerPort < 0 {
		d.driverPowerEnabled = true
		return true
	}
	client := d.powerClient()
	if client == nil {
		return false
	}
	if err := client.WriteIO(d.cfg.DriverPowerPort, true); err != nil {
		d.logs.Append("error enabling driver power: " + err.Error())
		return false
	}
	d.driverPowerEnabled = true
	return true
}

func (d *Device) disableDriverPower() bool {
	d.engageBrake()
	if d.cfg.DriverPowerPort < 0 {
		d.driverPowerEnabled = false
		return true
	}
	client := d.powerClient()
	if client == nil {
		return false
	}
	if err := client.WriteIO(d.cfg.DriverPowerPort, false); err != nil {
		d.logs.Append("error disabling driver power: " + err.Error())
		return false
	}
	d.driverPowerEnabled = false
	return true
}

// runRestore performs the post-reconnect restore actions of §6.2: enable
// driver power, release the brake, then sync each axis's encoder
// position into the motion controller.  Individual axis failures are
// logged but do not abort the others.
func (d *Device) runRestore() error {
	motion := d.proxy.Motion()
	encoder := d.proxy.Encoder()
	if motion == nil || encoder == nil {
		return ErrProxy
	}

	if !d.enableDriverPower() {
		return ErrProxy
	}
	if !d.releaseBrake() {
		return ErrProxy
	}

	var errs []error
	for axis := 0; axis < 6; axis++ {
		channel := d.encoderChannels[axis]
		v, err := encoder.ReadEncoder(channel)
		if err != nil {
			d.logs.Append(fmt.Sprintf("restore: axis %d encoder read failed: %v", axis, err))
			errs = append(errs, err)
			continue
		}
		if err := motion.SetEncoderPosition(axis, v); err != nil {
			d.logs.Append(fmt.Sprintf("restore: axis %d encoder sync failed: %v", axis, err))
			errs = append(errs, err)
			continue
		}
	}
	return util.MergeErrors(errs)
}

// round4 applies the package-wide 4-decimal rounding convention
func round4(x float64) float64 {
	return mathx.Round(x, 1e-4)
}

// logRestoreOutcome is a small helper used by telemetry's poll to report
// the outcome of a restore attempt through the process log
func (d *Device) logRestoreOutcome(err error) {
	if err == nil {
		log.Println("stewart: restore completed successfully")
	} else {
		log.Printf("stewart: restore attempt failed: %v\n", err)
	}
}
