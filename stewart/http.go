package stewart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/stewartctl/generichttp"
	"github.com/nasa-jpl/stewartctl/kinematics"
)

// HTTPStewart wraps a Device in an HTTP interface the way every device
// package in this codebase wraps itself with generichttp.RouteTable /
// generichttp.MethodPath, using go-chi/chi for path parameters.
type HTTPStewart struct {
	dev *Device
}

// NewHTTPStewart builds the HTTP wrapper around dev
func NewHTTPStewart(dev *Device) *HTTPStewart {
	return &HTTPStewart{dev: dev}
}

// poseArrayInput is the wire shape for /pose/absolute and /pose/relative
type poseArrayInput struct {
	Pose [6]float64 `json:"pose"`
}

type axisValueInput struct {
	Value float64 `json:"value"`
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	badRequest := []error{ErrOutOfRange, ErrUnreachable, ErrStateViolation, ErrLimitFaultLatched, ErrInvalidJSON}
	for _, sentinel := range badRequest {
		if errors.Is(err, sentinel) {
			status = http.StatusBadRequest
			break
		}
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func axisFromURL(r *http.Request) (int, error) {
	s := chi.URLParam(r, "axis")
	return strconv.Atoi(s)
}

func (h *HTTPStewart) postPoseAbsolute(w http.ResponseWriter, r *http.Request) {
	var in poseArrayInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, ErrInvalidJSON)
		return
	}
	if err := h.dev.MovePoseAbsolute(kinematics.PoseFromArray(in.Pose)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postPoseRelative(w http.ResponseWriter, r *http.Request) {
	var in poseArrayInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, ErrInvalidJSON)
		return
	}
	if err := h.dev.MovePoseRelative(kinematics.PoseFromArray(in.Pose)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postAxisAbsolute(w http.ResponseWriter, r *http.Request) {
	axis, err := axisFromURL(r)
	if err != nil {
		writeError(w, ErrOutOfRange)
		return
	}
	var in axisValueInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, ErrInvalidJSON)
		return
	}
	if err := h.dev.SingleMoveAbsolute(axis, in.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postAxisRelative(w http.ResponseWriter, r *http.Request) {
	axis, err := axisFromURL(r)
	if err != nil {
		writeError(w, ErrOutOfRange)
		return
	}
	var in axisValueInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, ErrInvalidJSON)
		return
	}
	if err := h.dev.SingleMoveRelative(axis, in.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postPVT(w http.ResponseWriter, r *http.Request) {
	var spec PVTSpec
	if err := decodeJSON(r, &spec); err != nil {
		writeError(w, ErrInvalidJSON)
		return
	}
	if err := h.dev.MovePVT(spec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postStop(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postReset(w http.ResponseWriter, r *http.Request) {
	if err := h.dev.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) postBrake(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	var err error
	switch state {
	case "open", "release":
		err = h.dev.OpenBrake()
	case "closed", "engage":
		h.dev.cmdMu.Lock()
		h.dev.engageBrake()
		h.dev.cmdMu.Unlock()
	default:
		writeError(w, ErrInvalidJSON)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int{"resultValue": 0})
}

func (h *HTTPStewart) getPose(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.dev.Snapshot())
}

func (h *HTTPStewart) getAxisPos(w http.ResponseWriter, r *http.Request) {
	axis, err := axisFromURL(r)
	if err != nil || axis < 0 || axis > 5 {
		writeError(w, ErrOutOfRange)
		return
	}
	snap := h.dev.Snapshot()
	writeJSON(w, generichttp.FloatT{F64: snap.AxisPos[axis]})
}

func (h *HTTPStewart) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"state": string(h.dev.State())})
}

func (h *HTTPStewart) getLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.dev.Logs())
}

func (h *HTTPStewart) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.dev.cfg)
}

// RT builds the route table described in §3/§7: the command endpoints
// that mutate device state, and the attribute endpoints that read it.
func (h *HTTPStewart) RT() generichttp.RouteTable {
	return generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/pose/absolute"}:        h.postPoseAbsolute,
		{Method: http.MethodPost, Path: "/pose/relative"}:        h.postPoseRelative,
		{Method: http.MethodPost, Path: "/axis/{axis}/absolute"}: h.postAxisAbsolute,
		{Method: http.MethodPost, Path: "/axis/{axis}/relative"}: h.postAxisRelative,
		{Method: http.MethodPost, Path: "/pvt"}:                  h.postPVT,
		{Method: http.MethodPost, Path: "/stop"}:                 h.postStop,
		{Method: http.MethodPost, Path: "/reset"}:                h.postReset,
		{Method: http.MethodPost, Path: "/brake/{state}"}:        h.postBrake,
		{Method: http.MethodGet, Path: "/pose"}:                  h.getPose,
		{Method: http.MethodGet, Path: "/axis/{axis}/pos"}:       h.getAxisPos,
		{Method: http.MethodGet, Path: "/state"}:                 h.getState,
		{Method: http.MethodGet, Path: "/logs"}:                  h.getLogs,
		{Method: http.MethodGet, Path: "/config"}:                h.getConfig,
	}
}
