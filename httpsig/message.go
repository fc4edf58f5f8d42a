package httpsig

import (
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// Signature header field names per RFC 9421 Section 4.
const (
	HeaderSignature      = "Signature"
	HeaderSignatureInput = "Signature-Input"
)

// Message is a read/write view over an HTTP request or response used to
// resolve covered components. It is immutable after construction.
type Message struct {
	adapter Adapter
	request *Message
}

// MessageOption configures NewMessage.
type MessageOption func(*messageOptions)

type messageOptions struct {
	request    any
	requestSet bool
}

// WithRequest attaches the request a response answers. Components carrying
// the req parameter are resolved against it. For *http.Response values the
// attached request defaults to Response.Request.
func WithRequest(req any) MessageOption {
	return func(o *messageOptions) {
		o.request = req
		o.requestSet = true
	}
}

type requestAttacher interface {
	attachedRequest() any
}

// NewMessage wraps a transport object. The object type must have a
// registered adapter (see RegisterAdapter) or implement Adapter itself.
func NewMessage(msg any, opts ...MessageOption) (*Message, error) {
	var o messageOptions
	for _, opt := range opts {
		opt(&o)
	}

	adapter, err := adapterFor(msg)
	if err != nil {
		return nil, err
	}

	if k := adapter.Kind(); k != KindRequest && k != KindResponse {
		return nil, fmt.Errorf("%w: %w: %T", ErrConstruction, ErrInvalidMessage, msg)
	}

	m := &Message{adapter: adapter}

	req := o.request
	if !o.requestSet {
		if ra, ok := adapter.(requestAttacher); ok {
			req = ra.attachedRequest()
		}
	}

	if req != nil {
		attached, err := NewMessage(req)
		if err != nil {
			return nil, err
		}

		if !attached.IsRequest() {
			return nil, fmt.Errorf("%w: %w: attached message is not a request", ErrConstruction, ErrInvalidMessage)
		}

		m.request = attached
	}

	return m, nil
}

// IsRequest reports whether the message is a request.
func (m *Message) IsRequest() bool { return m.adapter.Kind() == KindRequest }

// IsResponse reports whether the message is a response.
func (m *Message) IsResponse() bool { return m.adapter.Kind() == KindResponse }

// Request returns the attached request, or nil.
func (m *Message) Request() *Message { return m.request }

// Header returns the named header with field lines trimmed and joined by
// ", ".
func (m *Message) Header(name string) (string, bool) {
	lines, ok := m.adapter.Header(name)
	if !ok {
		return "", false
	}

	return joinFieldLines(lines), true
}

// Lookup parses raw as a component identifier and resolves it. Identifiers
// that cannot be parsed resolve to absent.
func (m *Message) Lookup(raw string) (string, bool) {
	id, err := ParseComponentID(raw)
	if err != nil {
		return "", false
	}

	return m.Value(id)
}

// Has reports whether the component identified by raw resolves to a value.
func (m *Message) Has(raw string) bool {
	_, ok := m.Lookup(raw)
	return ok
}

// Value resolves a component identifier to its canonical value per
// RFC 9421 Section 2. Invalid parameter combinations, the reserved
// @signature-params component and missing fields resolve to absent.
func (m *Message) Value(id ComponentID) (string, bool) {
	if id.Name() == ComponentSignatureParams || !m.validParams(id) {
		return "", false
	}

	if id.flag(ComponentParamReq) {
		if m.request == nil {
			return "", false
		}

		return m.request.Value(id.without(ComponentParamReq))
	}

	if id.Derived() {
		if id.Name() == ComponentStatus && !m.IsResponse() {
			return "", false
		}

		return m.adapter.Derived(id)
	}

	return m.fieldValue(id)
}

func (m *Message) validParams(id ComponentID) bool {
	if id.hasUnknownParams() {
		return false
	}

	structured := id.flag(ComponentParamSF) || id.HasParam(ComponentParamKey)
	binary := id.flag(ComponentParamBS)

	switch {
	case structured && binary:
		return false
	case id.HasParam(ComponentParamName) != (id.Name() == ComponentQueryParam):
		return false
	case id.HasParam(ComponentParamReq) && !m.IsResponse():
		return false
	case id.Derived() && (structured || binary || id.HasParam(ComponentParamTR)):
		return false
	}

	return true
}

func (m *Message) fieldValue(id ComponentID) (string, bool) {
	var (
		lines []string
		ok    bool
	)

	if id.flag(ComponentParamTR) {
		lines, ok = m.adapter.Trailer(id.Name())
	} else {
		lines, ok = m.adapter.Header(id.Name())
	}

	if !ok {
		return "", false
	}

	switch {
	case id.flag(ComponentParamSF) || id.HasParam(ComponentParamKey):
		return structuredFieldValue(lines, id)
	case id.flag(ComponentParamBS):
		return byteSequenceValue(lines)
	default:
		return joinFieldLines(lines), true
	}
}

// structuredFieldValue re-serializes a structured field per RFC 9421
// Section 2.1.1 and 2.1.2. Dictionaries are tried first, then lists and
// items. With the key parameter, only the named dictionary member is
// returned.
func structuredFieldValue(lines []string, id ComponentID) (string, bool) {
	dict, dictErr := httpsfv.UnmarshalDictionary(lines)

	if raw, ok := id.Param(ComponentParamKey); ok {
		key, isString := raw.(string)
		if !isString || dictErr != nil {
			return "", false
		}

		member, found := dict.Get(key)
		if !found {
			return "", false
		}

		return marshalField(member)
	}

	if dictErr == nil {
		return marshalField(dict)
	}

	if list, err := httpsfv.UnmarshalList(lines); err == nil {
		return marshalField(list)
	}

	if item, err := httpsfv.UnmarshalItem(lines); err == nil {
		return marshalField(item)
	}

	return "", false
}

func marshalField(v httpsfv.StructuredFieldValue) (string, bool) {
	s, err := httpsfv.Marshal(v)
	if err != nil {
		return "", false
	}

	return s, true
}

// byteSequenceValue wraps each field line as a byte sequence per RFC 9421
// Section 2.1.3.
func byteSequenceValue(lines []string) (string, bool) {
	parts := make([]string, 0, len(lines))

	for _, line := range lines {
		s, ok := marshalField(httpsfv.NewItem([]byte(strings.TrimSpace(line))))
		if !ok {
			return "", false
		}

		parts = append(parts, s)
	}

	return strings.Join(parts, ", "), true
}

func joinFieldLines(lines []string) string {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}

	return strings.Join(trimmed, ", ")
}

// Attach adds the signature to the message headers. Existing signatures
// with other labels are kept; a signature with the same label is replaced.
func (m *Message) Attach(sig *Signature) error {
	if sig == nil {
		return fmt.Errorf("%w: %w", ErrSigning, ErrNoSignature)
	}

	inputs, err := m.dictionary(HeaderSignatureInput)
	if err != nil {
		return err
	}

	values, err := m.dictionary(HeaderSignature)
	if err != nil {
		return err
	}

	inputs.Add(sig.Label(), sig.innerList())
	values.Add(sig.Label(), httpsfv.NewItem(sig.Value()))

	inputHeader, err := httpsfv.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSigning, err)
	}

	sigHeader, err := httpsfv.Marshal(values)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSigning, err)
	}

	m.adapter.Attach(map[string]string{
		HeaderSignatureInput: inputHeader,
		HeaderSignature:      sigHeader,
	})

	return nil
}

func (m *Message) dictionary(name string) (*httpsfv.Dictionary, error) {
	lines, ok := m.adapter.Header(name)
	if !ok {
		return httpsfv.NewDictionary(), nil
	}

	dict, err := httpsfv.UnmarshalDictionary(lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s: %w", ErrSigning, ErrMalformedHeader, name, err)
	}

	return dict, nil
}
