package httpsig

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dunglas/httpsfv"
)

// Signature parameters per RFC 9421 Section 2.3.
const (
	ParamCreated = "created"
	ParamExpires = "expires"
	ParamKeyID   = "keyid"
	ParamAlg     = "alg"
	ParamNonce   = "nonce"
	ParamTag     = "tag"
)

// Param is a single named parameter value.
type Param struct {
	Name  string
	Value any
}

// Params is an ordered, immutable set of signature parameters. Insertion
// order is significant: it is reproduced in the signature base.
type Params struct {
	list []Param
}

// NewParams builds a parameter set, preserving argument order.
//
// Values are normalized to structured field bare item types: Go integers
// become int64, float32 becomes float64, time.Time becomes unix seconds and
// Algorithm becomes its string name. Duplicate names are rejected.
func NewParams(params ...Param) (Params, error) {
	list := make([]Param, 0, len(params))
	seen := make(map[string]struct{}, len(params))

	for _, p := range params {
		if _, ok := seen[p.Name]; ok {
			return Params{}, fmt.Errorf("%w: duplicated parameter %q", ErrInvalidParams, p.Name)
		}

		seen[p.Name] = struct{}{}

		v, err := normalizeParamValue(p.Value)
		if err != nil {
			return Params{}, fmt.Errorf("%w: %q: %w", ErrInvalidParams, p.Name, err)
		}

		list = append(list, Param{Name: p.Name, Value: v})
	}

	out := Params{list: list}

	if _, err := httpsfv.Marshal(httpsfv.Item{Value: true, Params: out.sfv()}); err != nil {
		return Params{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return out, nil
}

// Get returns the value of the named parameter.
func (p Params) Get(name string) (any, bool) {
	for _, param := range p.list {
		if param.Name == name {
			return param.Value, true
		}
	}

	return nil, false
}

// Int returns the named parameter as an integer.
func (p Params) Int(name string) (int64, bool) {
	v, ok := p.Get(name)
	if !ok {
		return 0, false
	}

	i, ok := v.(int64)

	return i, ok
}

// StringValue returns the named parameter as a string. Tokens are accepted.
func (p Params) StringValue(name string) (string, bool) {
	v, ok := p.Get(name)
	if !ok {
		return "", false
	}

	switch s := v.(type) {
	case string:
		return s, true
	case httpsfv.Token:
		return string(s), true
	}

	return "", false
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p.list))
	for _, param := range p.list {
		names = append(names, param.Name)
	}

	return names
}

// All returns a copy of the parameters in order.
func (p Params) All() []Param {
	out := make([]Param, len(p.list))
	for i, param := range p.list {
		out[i] = Param{Name: param.Name, Value: copyParamValue(param.Value)}
	}

	return out
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.list) }

// Equal reports whether both sets hold the same parameters in the same order.
func (p Params) Equal(other Params) bool {
	if len(p.list) != len(other.list) {
		return false
	}

	for i := range p.list {
		if p.list[i].Name != other.list[i].Name || !paramValueEqual(p.list[i].Value, other.list[i].Value) {
			return false
		}
	}

	return true
}

func (p Params) sfv() *httpsfv.Params {
	out := httpsfv.NewParams()
	for _, param := range p.list {
		out.Add(param.Name, param.Value)
	}

	return out
}

func paramsFromSFV(in *httpsfv.Params) Params {
	if in == nil {
		return Params{}
	}

	list := make([]Param, 0, len(in.Names()))
	for _, name := range in.Names() {
		v, _ := in.Get(name)
		list = append(list, Param{Name: name, Value: v})
	}

	return Params{list: list}
}

func normalizeParamValue(v any) (any, error) {
	switch val := v.(type) {
	case int64, string, bool, float64, httpsfv.Token, httpsfv.DisplayString:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case []byte:
		return bytes.Clone(val), nil
	case time.Time:
		return val.Unix(), nil
	case Algorithm:
		return string(val), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}

func copyParamValue(v any) any {
	if b, ok := v.([]byte); ok {
		return bytes.Clone(b)
	}

	return v
}

func paramValueEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)

	if aok || bok {
		return aok && bok && bytes.Equal(ab, bb)
	}

	return a == b
}
