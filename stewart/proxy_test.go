package stewart

import (
	"net"
	"testing"
	"time"

	"github.com/nasa-jpl/stewartctl/comm"
)

// fakeLineServer accepts connections and replies "PONG\r" to any
// CR-terminated request, mirroring comm_test.go's tcpEchoServer helper
func fakeLineServer(t *testing.T, addr string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	go func() {
		var conns []net.Conn
		for {
			conn, err := ln.Accept()
			if err != nil {
				// closing the listener also drops the connections it served
				for _, c := range conns {
					c.Close()
				}
				return
			}
			conns = append(conns, conn)
			go func(c net.Conn) {
				defer c.Close()
				term := comm.NewTerminator(c, '\r', '\r')
				buf := make([]byte, 64)
				for {
					_, err := term.Read(buf)
					if err != nil {
						return
					}
					if _, err := term.Write([]byte("PONG")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln
}

func TestProxySupervisorRebuildsAndPublishesHealth(t *testing.T) {
	ln := fakeLineServer(t, "localhost:18765")
	defer ln.Close()

	p := NewProxySupervisor(TransportConfig{Addr: "localhost:18765"}, TransportConfig{Addr: "localhost:18765"}, time.Millisecond, false)
	p.tick()
	if !p.RestorePending() || p.Healthy() {
		t.Fatal("expected the motion rebuild to leave a restore pending and health false")
	}
	p.clearRestorePending() // stand in for the request path's restore
	p.tick()

	if !p.Healthy() {
		t.Fatal("expected both proxies to connect and health to publish true")
	}
	if p.Motion() == nil || p.Encoder() == nil {
		t.Fatal("expected both motion and encoder handles to be populated")
	}
}

func TestProxySupervisorDropsDeadHandleOnFailedPing(t *testing.T) {
	ln := fakeLineServer(t, "localhost:18766")

	p := NewProxySupervisor(TransportConfig{Addr: "localhost:18766"}, TransportConfig{Addr: "localhost:18766"}, time.Millisecond, false)
	p.tick()
	p.clearRestorePending() // stand in for the request path's restore
	p.tick()
	if !p.Healthy() {
		t.Fatal("expected initial connection to succeed")
	}

	ln.Close() // kill the server out from under the existing connections

	// give the OS a moment to tear down the sockets so the next ping fails
	time.Sleep(50 * time.Millisecond)
	p.tick()
	if p.Healthy() {
		t.Error("expected health to go false once the server is gone")
	}
	if p.Motion() != nil {
		t.Error("expected the dead motion handle to be dropped")
	}
}

func TestProxySupervisorSimulationModeStaysHealthy(t *testing.T) {
	p := NewProxySupervisor(TransportConfig{Addr: "unused:0"}, TransportConfig{Addr: "unused:0"}, time.Second, true)
	if !p.Healthy() {
		t.Fatal("expected simulation-mode supervisor to start healthy")
	}
	if _, ok := p.Motion().(*mockMotionClient); !ok {
		t.Error("expected simulation-mode Motion() to be the mock client")
	}
}

func TestProxySupervisorRestorePendingClearsOnSuccess(t *testing.T) {
	p := NewProxySupervisor(TransportConfig{Addr: "localhost:0"}, TransportConfig{Addr: "localhost:0"}, time.Second, false)
	p.motion = newMockMotionClient() // stand in for a rebuilt handle

	// manufacture the pending flag the way tick() would after a rebuild
	p.mu.Lock()
	p.motionRestorePending = 1
	p.mu.Unlock()

	if !p.RestorePending() {
		t.Fatal("expected RestorePending true after manual set")
	}
	p.clearRestorePending()
	if p.RestorePending() {
		t.Error("expected RestorePending false after clearRestorePending")
	}
}

func TestTransportConfigPrefersSerialWhenConfigured(t *testing.T) {
	tcp := TransportConfig{Addr: "localhost:1234"}
	if tcp.label() != "localhost:1234" {
		t.Errorf("expected TCP label to be the address, got %q", tcp.label())
	}

	ser := TransportConfig{Addr: "localhost:1234", SerialPort: "/dev/ttyUSB0", SerialBaud: 115200}
	if ser.label() != "/dev/ttyUSB0" {
		t.Errorf("expected serial label to be the port, got %q", ser.label())
	}
}
