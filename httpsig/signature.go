package httpsig

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
)

// DefaultLabel is the signature label used when none is configured.
const DefaultLabel = "sig1"

// timeNow is replaced in tests.
var timeNow = time.Now

// Signature is a single HTTP message signature: its label, the covered
// components, the signature parameters and the raw signature bytes.
// A Signature is immutable; getters return copies.
type Signature struct {
	label      string
	ids        []ComponentID
	params     Params
	value      []byte
	inputValue string
	sigValue   string
}

// NewSignature builds a signature from its parts. Components are parsed as
// component identifiers. An empty label selects DefaultLabel.
func NewSignature(label string, components []string, params Params, value []byte) (*Signature, error) {
	ids, err := parseComponentIDs(components)
	if err != nil {
		return nil, err
	}

	return newSignature(label, ids, params, value)
}

func newSignature(label string, ids []ComponentID, params Params, value []byte) (*Signature, error) {
	if label == "" {
		label = DefaultLabel
	}

	s := &Signature{
		label:  label,
		ids:    ids,
		params: params,
		value:  bytes.Clone(value),
	}

	input := httpsfv.NewDictionary()
	input.Add(label, s.innerList())

	inputValue, err := httpsfv.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrInvalidParams, err)
	}

	sig := httpsfv.NewDictionary()
	sig.Add(label, httpsfv.NewItem(s.value))

	sigValue, err := httpsfv.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrConstruction, ErrMalformedHeader, err)
	}

	s.inputValue = inputValue
	s.sigValue = sigValue

	return s, nil
}

// ParseSignature reads the signature with the given label from the
// Signature and Signature-Input headers.
//
// With an empty label the headers must hold exactly one signature,
// otherwise ErrMultipleSignatures is returned.
func ParseSignature(h http.Header, label string) (*Signature, error) {
	inputLines := nonEmpty(h.Values(HeaderSignatureInput))
	sigLines := nonEmpty(h.Values(HeaderSignature))

	if len(inputLines) == 0 || len(sigLines) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrNoSignature)
	}

	inputs, err := httpsfv.UnmarshalDictionary(inputLines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", ErrConstruction, ErrMalformedHeader, HeaderSignatureInput, err)
	}

	sigs, err := httpsfv.UnmarshalDictionary(sigLines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", ErrConstruction, ErrMalformedHeader, HeaderSignature, err)
	}

	if label == "" {
		names := inputs.Names()

		switch len(names) {
		case 0:
			return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrNoSignature)
		case 1:
			label = names[0]
		default:
			return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrMultipleSignatures)
		}
	}

	inputMember, inputOK := inputs.Get(label)
	sigMember, sigOK := sigs.Get(label)

	if !inputOK || !sigOK {
		return nil, fmt.Errorf("%w: %w: %q", ErrConstruction, ErrSignatureNotFound, label)
	}

	list, ok := inputMember.(httpsfv.InnerList)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrConstruction, ErrInvalidCoveredComponents, label)
	}

	ids := make([]ComponentID, 0, len(list.Items))
	for _, item := range list.Items {
		id, err := ComponentIDFromItem(item)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	item, ok := sigMember.(httpsfv.Item)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q is not a byte sequence", ErrConstruction, ErrMalformedHeader, label)
	}

	value, ok := item.Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q is not a byte sequence", ErrConstruction, ErrMalformedHeader, label)
	}

	return newSignature(label, ids, paramsFromSFV(list.Params), value)
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}

	return out
}

// Label returns the signature label.
func (s *Signature) Label() string { return s.label }

// Components returns the covered components in order. Components without
// parameters are returned as bare names, others in serialized form.
func (s *Signature) Components() []string {
	out := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, id.Raw())
	}

	return out
}

// ComponentIDs returns the parsed covered components in order.
func (s *Signature) ComponentIDs() []ComponentID {
	return slices.Clone(s.ids)
}

// Params returns the signature parameters.
func (s *Signature) Params() Params {
	return Params{list: s.params.All()}
}

// Value returns a copy of the raw signature bytes.
func (s *Signature) Value() []byte { return bytes.Clone(s.value) }

// KeyID returns the keyid parameter, or an empty string.
func (s *Signature) KeyID() string {
	v, _ := s.params.StringValue(ParamKeyID)
	return v
}

// Algorithm returns the alg parameter, or an empty string.
func (s *Signature) Algorithm() string {
	v, _ := s.params.StringValue(ParamAlg)
	return v
}

// Header returns the Signature-Input and Signature headers for this
// signature alone.
func (s *Signature) Header() http.Header {
	return http.Header{
		HeaderSignatureInput: []string{s.inputValue},
		HeaderSignature:      []string{s.sigValue},
	}
}

// Created returns the created parameter. The boolean is false when the
// parameter is absent; ErrMalformedCreated is returned when it is not an
// integer.
func (s *Signature) Created() (int64, bool, error) {
	return s.timestamp(ParamCreated, ErrMalformedCreated)
}

// Expires returns the expires parameter.
func (s *Signature) Expires() (int64, bool, error) {
	return s.timestamp(ParamExpires, ErrInvalidParams)
}

func (s *Signature) timestamp(name string, malformed error) (int64, bool, error) {
	v, ok := s.params.Get(name)
	if !ok {
		return 0, false, nil
	}

	ts, ok := v.(int64)
	if !ok {
		return 0, false, fmt.Errorf("%w: %s=%v", malformed, name, v)
	}

	return ts, true, nil
}

// OlderThan reports whether the signature was created more than d ago.
// ErrCreatedRequired is returned when the created parameter is absent.
func (s *Signature) OlderThan(d time.Duration) (bool, error) {
	created, ok, err := s.Created()
	if err != nil {
		return false, err
	}

	if !ok {
		return false, ErrCreatedRequired
	}

	return timeNow().Sub(time.Unix(created, 0)) > d, nil
}

func (s *Signature) innerList() httpsfv.InnerList {
	return innerList(s.ids, s.params)
}
