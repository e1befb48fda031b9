package stewart_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/stewartctl/stewart"
)

func testRouter(t *testing.T) (*httptest.Server, *stewart.Device) {
	t.Helper()
	dev := scenarioDevice(t)
	h := stewart.NewHTTPStewart(dev)
	mux := chi.NewRouter()
	h.RT().Bind(mux)
	return httptest.NewServer(mux), dev
}

func TestHTTPPoseAbsoluteMovesToZero(t *testing.T) {
	srv, dev := testRouter(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string][6]float64{"pose": {0, 0, 0, 0, 0, 0}})
	resp, err := http.Post(srv.URL+"/pose/absolute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /pose/absolute: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after move, got %s", dev.State())
	}
}

func TestHTTPPoseAbsoluteOutOfRangeReturns400(t *testing.T) {
	srv, _ := testRouter(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string][6]float64{"pose": {100, 0, 0, 0, 0, 0}})
	resp, err := http.Post(srv.URL+"/pose/absolute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /pose/absolute: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range pose, got %d", resp.StatusCode)
	}
}

func TestHTTPGetStateReportsOn(t *testing.T) {
	srv, _ := testRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["state"] != string(stewart.StateOn) {
		t.Errorf("expected state On, got %q", out["state"])
	}
}

func TestHTTPPostStopReturnsToOn(t *testing.T) {
	srv, dev := testRouter(t)
	defer srv.Close()

	body, _ := json.Marshal(map[string][6]float64{"pose": {1, 0, 0, 0, 0, 0}})
	resp, err := http.Post(srv.URL+"/pose/relative", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /pose/relative: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /stop: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if dev.State() != stewart.StateOn {
		t.Errorf("expected state On after stop, got %s", dev.State())
	}
}

func TestHTTPGetConfigReturnsBody(t *testing.T) {
	srv, _ := testRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/config")
	if err != nil {
		t.Fatalf("GET /config: %v", err)
	}
	defer resp.Body.Close()
	var cfg stewart.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.CurrentModel != "stewart-6dof" {
		t.Errorf("expected default CurrentModel, got %q", cfg.CurrentModel)
	}
}
