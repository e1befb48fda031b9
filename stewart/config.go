package stewart

// SystemConfig is the process-wide configuration singleton: the only
// global state the core carries.  It is populated once, at startup, from
// the same koanf load that produces Config, and is never hot-reloaded.
type SystemConfig struct {
	// Simulation, when true, routes every command through the mock
	// motion/encoder clients and disables the proxy supervisor's network
	// activity entirely
	Simulation bool `yaml:"Simulation"`

	// ReconnectIntervalSec is the cooldown, in seconds, the proxy
	// supervisor waits between reconnection attempts for a missing proxy
	ReconnectIntervalSec int `yaml:"ReconnectIntervalSec"`
}

// DefaultSystemConfig matches the documented defaults of §11: simulation
// off, a five second reconnect cooldown
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		Simulation:           false,
		ReconnectIntervalSec: 5,
	}
}

// Config is the full set of properties loaded at device construction.  It
// mirrors the GET /config attribute group of the external interface.
type Config struct {
	System SystemConfig `yaml:"System"`

	BundleNo  string `yaml:"BundleNo"`
	LaserNo   string `yaml:"LaserNo"`
	SystemNo  string `yaml:"SystemNo"`

	SubDevList   []string `yaml:"SubDevList"`
	ModelList    []string `yaml:"ModelList"`
	CurrentModel string   `yaml:"CurrentModel"`

	ConnectString     string            `yaml:"ConnectString"`
	ErrorDict         map[string]string `yaml:"ErrorDict"`
	DeviceName        string            `yaml:"DeviceName"`
	DeviceID          string            `yaml:"DeviceID"`
	DevicePosition    string            `yaml:"DevicePosition"`
	DeviceProductDate string            `yaml:"DeviceProductDate"`
	DeviceInstallDate string            `yaml:"DeviceInstallDate"`
	MoveRange         float64           `yaml:"MoveRange"`
	LimitNumber       int               `yaml:"LimitNumber"`

	// MinLeg and MaxLeg bound reachable leg lengths (mm); they seed the
	// kinematics.Geometry built at device construction
	MinLeg float64 `yaml:"MinLeg"`
	MaxLeg float64 `yaml:"MaxLeg"`

	// SdofConfig is the raw JSON blob describing platform geometry,
	// decoded directly with encoding/json (not koanf) since it travels
	// as an opaque string both here and over the wire
	SdofConfig string `yaml:"SdofConfig"`

	MotionControllerName string `yaml:"MotionControllerName"`
	MotionControllerAddr string `yaml:"MotionControllerAddr"`
	EncoderName          string `yaml:"EncoderName"`
	EncoderAddr          string `yaml:"EncoderAddr"`

	// MotionSerialPort, when non-empty, routes the motion client over a
	// serial line instead of TCP; MotionControllerAddr is then ignored
	MotionSerialPort string `yaml:"MotionSerialPort"`
	MotionSerialBaud int    `yaml:"MotionSerialBaud"`

	// EncoderSerialPort is the encoder client's serial equivalent
	EncoderSerialPort string `yaml:"EncoderSerialPort"`
	EncoderSerialBaud int    `yaml:"EncoderSerialBaud"`

	// EncoderChannels maps axis index (0-5) to physical encoder channel;
	// default is the identity mapping
	EncoderChannels [6]int `yaml:"EncoderChannels"`

	MotorStepAngle    float64 `yaml:"MotorStepAngle"`
	MotorGearRatio    float64 `yaml:"MotorGearRatio"`
	MotorSubdivision  int     `yaml:"MotorSubdivision"`

	// DriverPowerPort is -1 when no driver-power port is configured
	DriverPowerPort       int    `yaml:"DriverPowerPort"`
	DriverPowerController string `yaml:"DriverPowerController"`

	// BrakePowerPort is -1 when no brake port is configured
	BrakePowerPort       int    `yaml:"BrakePowerPort"`
	BrakePowerController string `yaml:"BrakePowerController"`

	// Addr is the HTTP listen address, matching cmd/andorhttp3's Addr
	Addr string `yaml:"Addr"`
	// Root is the HTTP submount path; run binds the routes at / and does
	// not read it
	Root string `yaml:"Root"`
}

// DefaultConfig matches the documented defaults of §7/§11: motor step
// angle 1.8 degrees, gear ratio 1.0, subdivision 12800, identity encoder
// channel mapping, no power/brake ports configured.
func DefaultConfig() Config {
	return Config{
		System:                DefaultSystemConfig(),
		CurrentModel:          "stewart-6dof",
		ErrorDict:             map[string]string{},
		EncoderChannels:       [6]int{0, 1, 2, 3, 4, 5},
		MotorStepAngle:        1.8,
		MotorGearRatio:        1.0,
		MotorSubdivision:      12800,
		DriverPowerPort:       -1,
		BrakePowerPort:        -1,
		MotionControllerName:  "motion",
		EncoderName:           "encoder",
		MotionSerialBaud:      115200,
		EncoderSerialBaud:     115200,
		// SdofConfig default mirrors the reference geometry used in
		// end-to-end scenario 1: r1=110, r2=193, hh=408, a1=40, a2=14,
		// ll=421.4857
		SdofConfig: `{"r1":110,"r2":193,"hh":408,"a1":40,"a2":14,"h":0,"h3":0,"ll":421.4857}`,
		MinLeg:     0,
		MaxLeg:     1000,
		Addr:       ":8000",
		Root:       "/",
	}
}

// leadScrewMM is the leadscrew pitch assumed when recomputing pulses-per-
// millimetre from motor parameters; it is not itself a Config field
// because this actuator family treats it as a fixed mechanical constant,
// not a tunable.  Solved so that the documented default motor parameters
// (1.8 deg step, 1.0 gear ratio, 12800 subdivision) reproduce the
// documented default PulsesPerMM.
const leadScrewMM = 2560000.0 / 29793.103

// pulsesPerMM recomputes K, the leg-length-delta-to-pulses conversion
// factor, from the configured motor parameters: step angle, gear ratio,
// and microstep subdivision.
func pulsesPerMM(stepAngleDeg, gearRatio float64, subdivision int) float64 {
	stepsPerRev := 360.0 / stepAngleDeg * float64(subdivision) * gearRatio
	return stepsPerRev / leadScrewMM
}

// PulsesPerMM is the default leg-length-delta-to-pulses conversion
// factor for the documented default motor parameters, ~29793.103
// pulses/mm
var PulsesPerMM = pulsesPerMM(1.8, 1.0, 12800)
