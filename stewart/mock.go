package stewart

import "sync"

// mockMotionClient is the simulation-mode MotionClient, grounded on
// pi/mock.go's MockController: mutex-guarded maps keyed by axis,
// deterministic success, no I/O.
type mockMotionClient struct {
	mu        sync.Mutex
	pulses    map[int]int
	elState   map[int]int
	ioState   map[int]bool
	lastState State
}

func newMockMotionClient() *mockMotionClient {
	return &mockMotionClient{
		pulses:    make(map[int]int),
		elState:   make(map[int]int),
		ioState:   make(map[int]bool),
		lastState: StateOn,
	}
}

func (c *mockMotionClient) Ping() error { return nil }

func (c *mockMotionClient) State(axis int) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState, nil
}

func (c *mockMotionClient) MoveRelative(axis int, pulses int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses[axis] += pulses
	return nil
}

func (c *mockMotionClient) MoveAbsolute(axis int, pulses int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses[axis] = pulses
	return nil
}

func (c *mockMotionClient) StopMove(axis int) error { return nil }

func (c *mockMotionClient) Reset(axis int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elState[axis] = 0
	return nil
}

func (c *mockMotionClient) MoveZero(axis int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses[axis] = 0
	return nil
}

func (c *mockMotionClient) ReadEL(axis int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elState[axis], nil
}

func (c *mockMotionClient) SetEncoderPosition(axis int, mm float64) error { return nil }

func (c *mockMotionClient) SetStructParameter(axis int, stepAngle, gearRatio float64, subdivision int) error {
	return nil
}

func (c *mockMotionClient) SetMoveParameter(axis int, startSpeed, maxSpeed, accTime, decTime, stopSpeed float64) error {
	return nil
}

func (c *mockMotionClient) WriteIO(port int, logicalValue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ioState[port] = logicalValue
	return nil
}

func (c *mockMotionClient) SetPvts(payload []byte) error { return nil }

func (c *mockMotionClient) MovePvts(axes []int) error { return nil }

// simulateLimitTrigger is test-only plumbing allowing a limit-fault
// scenario to be reproduced without real hardware
func (c *mockMotionClient) simulateLimitTrigger(axis, elState int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elState[axis] = elState
}

// mockEncoderClient is the simulation-mode EncoderClient
type mockEncoderClient struct {
	mu     sync.Mutex
	values map[int]float64
}

func newMockEncoderClient() *mockEncoderClient {
	return &mockEncoderClient{values: make(map[int]float64)}
}

func (c *mockEncoderClient) Ping() error { return nil }

func (c *mockEncoderClient) ReadEncoder(channel int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[channel], nil
}

func (c *mockEncoderClient) setValue(channel int, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[channel] = v
}
