package httpsig

import (
	"fmt"
	"reflect"
)

// MessageKind tells whether a message is a request or a response.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindRequest
	KindResponse
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Adapter exposes an HTTP transport object (request or response) to the
// signature engine.
//
// Adapters only return raw data. Parameter handling, trimming and
// structured field re-serialization are done by Message.
type Adapter interface {
	// Kind reports whether the underlying object is a request or a
	// response. KindUnknown makes message construction fail.
	Kind() MessageKind

	// Header returns the raw field lines of the named header, matched
	// case-insensitively.
	Header(name string) ([]string, bool)

	// Trailer returns the raw field lines of the named trailer field.
	// Adapters without trailer support return false.
	Trailer(name string) ([]string, bool)

	// Derived returns the value of a derived component (name starting
	// with "@"). The id never carries the req parameter.
	Derived(id ComponentID) (string, bool)

	// Attach sets each header on the underlying object, replacing
	// existing values.
	Attach(fields map[string]string)
}

type adapterFunc func(any) (Adapter, error)

type adapterEntry struct {
	typ   reflect.Type
	build adapterFunc
}

var adaptersByType = map[reflect.Type]adapterFunc{}

var adaptersByIface []adapterEntry

// RegisterAdapter registers an adapter constructor for transport type T.
//
// Concrete types are matched exactly. When T is an interface type, any
// value implementing it matches, in registration order, after all exact
// matches failed. Registering the same concrete type again replaces the
// previous constructor.
//
// RegisterAdapter is meant to be called from init functions and is not
// safe for concurrent use with NewMessage.
func RegisterAdapter[T any](fn func(T) (Adapter, error)) {
	typ := reflect.TypeFor[T]()
	build := func(v any) (Adapter, error) {
		return fn(v.(T))
	}

	if typ.Kind() == reflect.Interface {
		adaptersByIface = append(adaptersByIface, adapterEntry{typ: typ, build: build})
		return
	}

	adaptersByType[typ] = build
}

// adapterFor returns an adapter for msg.
func adapterFor(msg any) (Adapter, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrNoMessage)
	}

	if a, ok := msg.(Adapter); ok {
		return a, nil
	}

	typ := reflect.TypeOf(msg)

	if build, ok := adaptersByType[typ]; ok {
		return build(msg)
	}

	for _, entry := range adaptersByIface {
		if typ.Implements(entry.typ) {
			return entry.build(msg)
		}
	}

	return nil, fmt.Errorf("%w: %w: %T", ErrConstruction, ErrUnsupportedMessage, msg)
}
