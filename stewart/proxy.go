package stewart

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// pingTimeout bounds each proxy health check
	pingTimeout = 300 * time.Millisecond
	// connectTimeout bounds each (re)connection attempt
	connectTimeout = 500 * time.Millisecond
	// monitorInterval is the background supervisor's tick cadence
	monitorInterval = 500 * time.Millisecond
	// MaxRestoreRetries bounds the number of restore attempts after a
	// successful proxy rebuild before the pending flag is given up on
	MaxRestoreRetries = 3
)

// ProxySupervisor keeps the motion and encoder client handles alive under
// network faults without ever blocking the request path.  One background
// goroutine runs Run; request goroutines call Motion/Encoder to borrow
// the current handle under lock and release it before use, the same
// acquire-under-lock-then-release discipline as comm.Pool.Get/Put.
type ProxySupervisor struct {
	mu      sync.Mutex
	motion  MotionClient
	encoder EncoderClient

	motionTransport  TransportConfig
	encoderTransport TransportConfig

	lastReconnectAttempt time.Time
	reconnectInterval    time.Duration

	simulation bool

	connectionHealthy    int32 // atomic bool
	motionRestorePending int32 // atomic bool
	restoreRetryCount    int32 // atomic
}

// NewProxySupervisor builds a supervisor for the given transports.  In
// simulation mode no network or serial connections are ever made;
// Motion/Encoder return the mock clients immediately healthy.
func NewProxySupervisor(motionTransport, encoderTransport TransportConfig, reconnectInterval time.Duration, simulation bool) *ProxySupervisor {
	p := &ProxySupervisor{
		motionTransport:   motionTransport,
		encoderTransport:  encoderTransport,
		reconnectInterval: reconnectInterval,
		simulation:        simulation,
	}
	if simulation {
		p.motion = newMockMotionClient()
		p.encoder = newMockEncoderClient()
		atomic.StoreInt32(&p.connectionHealthy, 1)
	}
	return p
}

// Motion returns the current motion client handle, or nil if none is
// connected
func (p *ProxySupervisor) Motion() MotionClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.motion
}

// Encoder returns the current encoder client handle, or nil if none is
// connected
func (p *ProxySupervisor) Encoder() EncoderClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder
}

// Healthy reports the last published connection health: both pings
// succeeded on the last monitor cycle and no restore is pending (P4)
func (p *ProxySupervisor) Healthy() bool {
	return atomic.LoadInt32(&p.connectionHealthy) == 1
}

// RestorePending reports whether a successful motion-proxy rebuild is
// awaiting its request-path restore actions
func (p *ProxySupervisor) RestorePending() bool {
	return atomic.LoadInt32(&p.motionRestorePending) == 1
}

// clearRestorePending is called by the request path once restore
// actions have run to completion (success or final failure)
func (p *ProxySupervisor) clearRestorePending() {
	atomic.StoreInt32(&p.motionRestorePending, 0)
	atomic.StoreInt32(&p.restoreRetryCount, 0)
}

// bumpRestoreRetryCount increments and returns the restore retry counter,
// called by telemetry's poll after each failed restore attempt
func (p *ProxySupervisor) bumpRestoreRetryCount() int32 {
	return atomic.AddInt32(&p.restoreRetryCount, 1)
}

// Run executes the background monitor loop until ctx is cancelled.  It is
// started once at device construction (unless in simulation mode);
// Device.Shutdown cancels ctx and does not wait for Run to return.
func (p *ProxySupervisor) Run(ctx context.Context) {
	if p.simulation {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs one monitor iteration: ping existing handles, drop dead ones,
// attempt rebuilds on cooldown, and publish health
func (p *ProxySupervisor) tick() {
	motionOK := p.pingMotion()
	encoderOK := p.pingEncoder()

	p.mu.Lock()
	needsMotion := p.motion == nil
	needsEncoder := p.encoder == nil
	cooldownElapsed := time.Since(p.lastReconnectAttempt) >= p.reconnectInterval
	p.mu.Unlock()

	if (needsMotion || needsEncoder) && cooldownElapsed {
		p.mu.Lock()
		p.lastReconnectAttempt = time.Now()
		p.mu.Unlock()

		if needsMotion {
			if p.rebuildMotion() {
				motionOK = true
				atomic.StoreInt32(&p.motionRestorePending, 1)
			}
		}
		if needsEncoder {
			encoderOK = p.rebuildEncoder()
		}
	}

	restorePending := p.RestorePending()
	healthy := motionOK && encoderOK && !restorePending
	if healthy {
		atomic.StoreInt32(&p.connectionHealthy, 1)
	} else {
		atomic.StoreInt32(&p.connectionHealthy, 0)
	}
}

func (p *ProxySupervisor) pingMotion() bool {
	p.mu.Lock()
	client := p.motion
	p.mu.Unlock()
	if client == nil {
		return false
	}
	if !pingWithTimeout(client.Ping, pingTimeout) {
		p.mu.Lock()
		p.motion = nil
		p.mu.Unlock()
		return false
	}
	return true
}

func (p *ProxySupervisor) pingEncoder() bool {
	p.mu.Lock()
	client := p.encoder
	p.mu.Unlock()
	if client == nil {
		return false
	}
	if !pingWithTimeout(client.Ping, pingTimeout) {
		p.mu.Lock()
		p.encoder = nil
		p.mu.Unlock()
		return false
	}
	return true
}

// pingWithTimeout runs ping on its own goroutine and reports false if it
// errors or fails to return within timeout
func pingWithTimeout(ping func() error, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() { done <- ping() }()
	select {
	case err := <-done:
		return err == nil
	case <-time.After(timeout):
		return false
	}
}

func (p *ProxySupervisor) rebuildMotion() bool {
	client := newMotionClient(p.motionTransport, connectTimeout)
	if !pingWithTimeout(client.Ping, pingTimeout) {
		log.Printf("stewart: motion proxy rebuild at %s failed ping", p.motionTransport.label())
		return false
	}
	p.mu.Lock()
	p.motion = client
	p.mu.Unlock()
	log.Printf("stewart: motion proxy rebuilt at %s", p.motionTransport.label())
	return true
}

func (p *ProxySupervisor) rebuildEncoder() bool {
	client := newEncoderClient(p.encoderTransport, connectTimeout)
	if !pingWithTimeout(client.Ping, pingTimeout) {
		log.Printf("stewart: encoder proxy rebuild at %s failed ping", p.encoderTransport.label())
		return false
	}
	p.mu.Lock()
	p.encoder = client
	p.mu.Unlock()
	log.Printf("stewart: encoder proxy rebuilt at %s", p.encoderTransport.label())
	return true
}
