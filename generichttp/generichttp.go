// Package generichttp defines small scalar payload types and an
// extensible route-table abstraction used to wrap devices in an HTTP
// interface with github.com/go-chi/chi as the router.
package generichttp

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
	"github.com/nasa-jpl/stewartctl/util"
)

// all of the following types are followed with a capital T for homogenaeity and
// avoiding clashes with builtins

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct containing the basic scalar types device
// attributes are made of
type HumanPayload struct {
	// Bool holds a binary value
	Bool bool

	// Int holds an int
	Int int

	// Float holds a float
	Float float64

	// String holds a string
	String string

	// T holds the type of data actually contained in the payload
	T types.BasicKind
}

// EncodeAndRespond converts the humanpayload to a smaller struct with only one
// field and writes it to w as JSON.
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	var (
		obj interface{}
	)
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	}
	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		fstr := fmt.Sprintf("error encoding %+v hp to JSON, %q", hp, err)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// HTTPer is an interface which allows types to yield their route tables
// for processing
type HTTPer interface {
	RT() RouteTable
}

// MethodPath is an HTTP method and URL path pair
type MethodPath struct {
	Method, Path string
}

func (mp MethodPath) String() string {
	return mp.Method + " " + mp.Path
}

// RouteTable maps a method+path to its handler, independent of any one
// router implementation
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints returns the endpoints in the route table, sorted and de-duped
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for key := range rt {
		routes = append(routes, key.String())
	}
	routes = util.UniqueString(routes)
	sort.Strings(routes)
	return routes
}

// EndpointsHTTP returns a handler that encodes the endpoint list to JSON
func (rt RouteTable) EndpointsHTTP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpts := rt.Endpoints()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(endpts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Bind registers every route in the table on the given chi router, plus
// a GET /endpoints route if one is not already present
func (rt RouteTable) Bind(mux chi.Router) {
	for mp, fn := range rt {
		mux.MethodFunc(mp.Method, mp.Path, fn)
	}
	if _, exists := rt[MethodPath{Method: http.MethodGet, Path: "/endpoints"}]; !exists {
		mux.Get("/endpoints", rt.EndpointsHTTP())
	}
}
