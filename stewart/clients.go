package stewart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/stewartctl/comm"
	"github.com/tarm/serial"
)

// TransportConfig names how to reach a downstream client: either a TCP
// address or a serial port.  pi.NewNetwork takes an addr/serial switch
// but its serial branch is never wired up; this one is.
type TransportConfig struct {
	Addr       string
	SerialPort string
	SerialBaud int
}

// maker builds the comm.CreationFunc for this transport, preferring the
// serial port when one is configured
func (t TransportConfig) maker(connectTimeout time.Duration) comm.CreationFunc {
	if t.SerialPort != "" {
		return comm.SerialConnMaker(&serial.Config{
			Name:        t.SerialPort,
			Baud:        t.SerialBaud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: 10 * time.Second,
		})
	}
	return comm.BackingOffTCPConnMaker(t.Addr, connectTimeout)
}

// label identifies this transport for log messages
func (t TransportConfig) label() string {
	if t.SerialPort != "" {
		return t.SerialPort
	}
	return t.Addr
}

// MotionClient is the downstream contract to the six-axis stepper motion
// controller.  Any concrete transport satisfying it is acceptable -- a
// real comm.Pool-backed TCP client or the simulation mock -- matching the
// way pi.PIController composes small interfaces over real and mock
// implementations.
type MotionClient interface {
	Ping() error
	State(axis int) (State, error)
	MoveRelative(axis int, pulses int) error
	MoveAbsolute(axis int, pulses int) error
	StopMove(axis int) error
	Reset(axis int) error
	MoveZero(axis int) error
	ReadEL(axis int) (int, error)
	SetEncoderPosition(axis int, mm float64) error
	SetStructParameter(axis int, stepAngle, gearRatio float64, subdivision int) error
	SetMoveParameter(axis int, startSpeed, maxSpeed, accTime, decTime, stopSpeed float64) error
	WriteIO(port int, logicalValue bool) error
	SetPvts(payload []byte) error
	MovePvts(axes []int) error
}

// EncoderClient is the downstream contract to the absolute encoder
// acquisition service: a small, single-purpose client in the envsrv
// "one small service, one small client" style.
type EncoderClient interface {
	Ping() error
	ReadEncoder(channel int) (float64, error)
}

// motionTCPClient is a comm.Pool-backed MotionClient using a line
// oriented ASCII protocol, CR-terminated the way pi/gcs2.go frames its
// controller commands.
type motionTCPClient struct {
	pool *comm.Pool
}

// newMotionClient builds a motion client backed by a single-connection
// pool dialing t, rebuilt with exponential backoff on failure over TCP,
// or opened directly over serial when t.SerialPort is set
func newMotionClient(t TransportConfig, connectTimeout time.Duration) *motionTCPClient {
	pool := comm.NewPool(1, 30*time.Second, t.maker(connectTimeout))
	return &motionTCPClient{pool: pool}
}

// sendRecv writes a CR-terminated command and reads a CR-terminated
// reply, returning the pool connection with ReturnWithError
func (c *motionTCPClient) sendRecv(cmd string) (string, error) {
	rw, err := c.pool.Get()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	term := comm.NewTerminator(rw, '\r', '\r')
	_, err = term.Write([]byte(cmd))
	if err != nil {
		c.pool.ReturnWithError(rw, err)
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	buf := make([]byte, 256)
	n, err := term.Read(buf)
	c.pool.ReturnWithError(rw, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	return string(buf[:n]), nil
}

func (c *motionTCPClient) Ping() error {
	_, err := c.sendRecv("PING")
	return err
}

func (c *motionTCPClient) State(axis int) (State, error) {
	reply, err := c.sendRecv(fmt.Sprintf("STA %d", axis))
	if err != nil {
		return StateUnknown, err
	}
	return State(strings.TrimSpace(reply)), nil
}

func (c *motionTCPClient) MoveRelative(axis int, pulses int) error {
	_, err := c.sendRecv(fmt.Sprintf("MVR %d %d", axis, pulses))
	return err
}

func (c *motionTCPClient) MoveAbsolute(axis int, pulses int) error {
	_, err := c.sendRecv(fmt.Sprintf("MOV %d %d", axis, pulses))
	return err
}

func (c *motionTCPClient) StopMove(axis int) error {
	_, err := c.sendRecv(fmt.Sprintf("STP %d", axis))
	return err
}

func (c *motionTCPClient) Reset(axis int) error {
	_, err := c.sendRecv(fmt.Sprintf("RST %d", axis))
	return err
}

func (c *motionTCPClient) MoveZero(axis int) error {
	_, err := c.sendRecv(fmt.Sprintf("MVZ %d", axis))
	return err
}

func (c *motionTCPClient) ReadEL(axis int) (int, error) {
	reply, err := c.sendRecv(fmt.Sprintf("REL %d", axis))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed EL reply %q", ErrProxy, reply)
	}
	return v, nil
}

func (c *motionTCPClient) SetEncoderPosition(axis int, mm float64) error {
	_, err := c.sendRecv(fmt.Sprintf("SEP %d %f", axis, mm))
	return err
}

func (c *motionTCPClient) SetStructParameter(axis int, stepAngle, gearRatio float64, subdivision int) error {
	_, err := c.sendRecv(fmt.Sprintf("SSP %d %f %f %d", axis, stepAngle, gearRatio, subdivision))
	return err
}

func (c *motionTCPClient) SetMoveParameter(axis int, startSpeed, maxSpeed, accTime, decTime, stopSpeed float64) error {
	_, err := c.sendRecv(fmt.Sprintf("SMP %d %f %f %f %f %f", axis, startSpeed, maxSpeed, accTime, decTime, stopSpeed))
	return err
}

// WriteIO always writes the logical value; active-low inversion for the
// physical pin is performed by the controller firmware, not here.
func (c *motionTCPClient) WriteIO(port int, logicalValue bool) error {
	v := 0
	if logicalValue {
		v = 1
	}
	_, err := c.sendRecv(fmt.Sprintf("WIO %d %d", port, v))
	return err
}

func (c *motionTCPClient) SetPvts(payload []byte) error {
	_, err := c.sendRecv(fmt.Sprintf("SPV %s", string(payload)))
	return err
}

func (c *motionTCPClient) MovePvts(axes []int) error {
	parts := make([]string, len(axes))
	for i, a := range axes {
		parts[i] = strconv.Itoa(a)
	}
	_, err := c.sendRecv(fmt.Sprintf("MPV %s", strings.Join(parts, ",")))
	return err
}

// encoderTCPClient is a comm.Pool-backed EncoderClient, mirroring the
// envsrv pattern of one small service with one small client.
type encoderTCPClient struct {
	pool *comm.Pool
}

func newEncoderClient(t TransportConfig, connectTimeout time.Duration) *encoderTCPClient {
	pool := comm.NewPool(1, 30*time.Second, t.maker(connectTimeout))
	return &encoderTCPClient{pool: pool}
}

func (c *encoderTCPClient) sendRecv(cmd string) (string, error) {
	rw, err := c.pool.Get()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	term := comm.NewTerminator(rw, '\r', '\r')
	_, err = term.Write([]byte(cmd))
	if err != nil {
		c.pool.ReturnWithError(rw, err)
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	buf := make([]byte, 64)
	n, err := term.Read(buf)
	c.pool.ReturnWithError(rw, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProxy, err)
	}
	return string(buf[:n]), nil
}

func (c *encoderTCPClient) Ping() error {
	_, err := c.sendRecv("PING")
	return err
}

func (c *encoderTCPClient) ReadEncoder(channel int) (float64, error) {
	reply, err := c.sendRecv(fmt.Sprintf("REC %d", channel))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed encoder reply %q", ErrProxy, reply)
	}
	return v, nil
}
