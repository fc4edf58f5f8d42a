package httpsig

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/net/http/httpguts"
)

// Derived component identifiers per RFC 9421 Section 2.2.
const (
	ComponentMethod          = "@method"
	ComponentAuthority       = "@authority"
	ComponentPath            = "@path"
	ComponentQuery           = "@query"
	ComponentQueryParam      = "@query-param"
	ComponentTargetURI       = "@target-uri"
	ComponentScheme          = "@scheme"
	ComponentRequestTarget   = "@request-target"
	ComponentStatus          = "@status"
	ComponentSignatureParams = "@signature-params"
)

// Component identifier parameters per RFC 9421 Section 2.1 and 2.2.8.
const (
	ComponentParamSF   = "sf"
	ComponentParamKey  = "key"
	ComponentParamBS   = "bs"
	ComponentParamTR   = "tr"
	ComponentParamReq  = "req"
	ComponentParamName = "name"
)

var knownComponentParams = []string{
	ComponentParamSF,
	ComponentParamKey,
	ComponentParamBS,
	ComponentParamReq,
	ComponentParamTR,
	ComponentParamName,
}

// ComponentID identifies a single covered component: a header field name
// or a derived component name, plus its structured field parameters.
//
// A ComponentID is immutable. The zero value is not a valid identifier.
type ComponentID struct {
	name       string
	params     []Param
	serialized string
}

// ParseComponentID parses a component identifier.
//
// Three forms are accepted:
//
//	"@method"                  serialized structured field item
//	"example-dict";key="a"     serialized item with parameters
//	example-dict;key="a";sf    unserialized name with parameters
//	@method / content-type     bare derived or field name
func ParseComponentID(raw string) (ComponentID, error) {
	switch {
	case strings.HasPrefix(raw, `"`):
		item, err := httpsfv.UnmarshalItem([]string{raw})
		if err != nil {
			return ComponentID{}, fmt.Errorf("%w: %w: %q: %w", ErrConstruction, ErrInvalidComponentID, raw, err)
		}

		return ComponentIDFromItem(item)

	case strings.Contains(raw, ";"):
		return parseUnserializedComponentID(raw)

	case strings.HasPrefix(raw, "@"), raw != "" && raw[0] >= 'a' && raw[0] <= 'z':
		return newComponentID(raw, nil)

	default:
		return ComponentID{}, fmt.Errorf("%w: %w: %q", ErrConstruction, ErrInvalidComponentID, raw)
	}
}

// ComponentIDFromItem builds a component identifier from an already parsed
// structured field item, e.g. a member of a Signature-Input inner list.
func ComponentIDFromItem(item httpsfv.Item) (ComponentID, error) {
	name, ok := item.Value.(string)
	if !ok {
		return ComponentID{}, fmt.Errorf("%w: %w: item value must be a string, got %T", ErrConstruction, ErrInvalidComponentID, item.Value)
	}

	var params []Param
	if item.Params != nil {
		for _, k := range item.Params.Names() {
			v, _ := item.Params.Get(k)
			params = append(params, Param{Name: k, Value: v})
		}
	}

	return newComponentID(name, params)
}

func newComponentID(name string, params []Param) (ComponentID, error) {
	if !validComponentName(name) {
		return ComponentID{}, fmt.Errorf("%w: %w: %q", ErrConstruction, ErrInvalidComponentID, name)
	}

	normalized := make([]Param, 0, len(params))
	for _, p := range params {
		v, err := normalizeParamValue(p.Value)
		if err != nil {
			return ComponentID{}, fmt.Errorf("%w: %w: %q: %w", ErrConstruction, ErrInvalidComponentID, name, err)
		}

		normalized = append(normalized, Param{Name: p.Name, Value: v})
	}

	id := ComponentID{name: name, params: normalized}

	serialized, err := httpsfv.Marshal(id.Item())
	if err != nil {
		return ComponentID{}, fmt.Errorf("%w: %w: %q: %w", ErrConstruction, ErrInvalidComponentID, name, err)
	}

	id.serialized = serialized

	return id, nil
}

// parseUnserializedComponentID parses the name;param;key="value" form.
func parseUnserializedComponentID(raw string) (ComponentID, error) {
	parts := splitQuoteAware(raw, ';')
	if len(parts) == 0 || strings.HasPrefix(raw, ";") {
		return ComponentID{}, fmt.Errorf("%w: %w: %q", ErrConstruction, ErrInvalidComponentID, raw)
	}

	params := make([]Param, 0, len(parts)-1)
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			params = append(params, Param{Name: key, Value: true})
			continue
		}

		item, err := httpsfv.UnmarshalItem([]string{value})
		if err != nil {
			return ComponentID{}, fmt.Errorf("%w: %w: %q: %w", ErrConstruction, ErrInvalidComponentID, raw, err)
		}

		params = append(params, Param{Name: key, Value: item.Value})
	}

	return newComponentID(parts[0], params)
}

// validComponentName reports whether name is a lowercase field name or a
// derived component name.
func validComponentName(name string) bool {
	if derived, ok := strings.CutPrefix(name, "@"); ok {
		return derived != "" && httpguts.ValidHeaderFieldName(derived)
	}

	return httpguts.ValidHeaderFieldName(name) && strings.ToLower(name) == name
}

// Name returns the field name or derived component name.
func (c ComponentID) Name() string { return c.name }

// Derived reports whether the identifier names a derived component.
func (c ComponentID) Derived() bool { return strings.HasPrefix(c.name, "@") }

// String returns the canonical structured field serialization, as used in
// the signature base, e.g. "@method" or "example-dict";key="a".
func (c ComponentID) String() string { return c.serialized }

// Raw returns the bare name when the identifier has no parameters and the
// serialized form otherwise. This is the form reported by
// Signature.Components.
func (c ComponentID) Raw() string {
	if len(c.params) == 0 {
		return c.name
	}

	return c.serialized
}

// Param returns the value of the named parameter.
func (c ComponentID) Param(name string) (any, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value, true
		}
	}

	return nil, false
}

// HasParam reports whether the named parameter is present.
func (c ComponentID) HasParam(name string) bool {
	_, ok := c.Param(name)
	return ok
}

// ParamNames returns the parameter names in order.
func (c ComponentID) ParamNames() []string {
	names := make([]string, 0, len(c.params))
	for _, p := range c.params {
		names = append(names, p.Name)
	}

	return names
}

// Item returns a fresh structured field item for the identifier.
func (c ComponentID) Item() httpsfv.Item {
	item := httpsfv.NewItem(c.name)
	for _, p := range c.params {
		item.Params.Add(p.Name, p.Value)
	}

	return item
}

// Equal reports whether both identifiers have the same name and the same
// set of parameters. Parameter order is not significant.
func (c ComponentID) Equal(other ComponentID) bool {
	if c.name != other.name || len(c.params) != len(other.params) {
		return false
	}

	for _, p := range c.params {
		v, ok := other.Param(p.Name)
		if !ok || !paramValueEqual(p.Value, v) {
			return false
		}
	}

	return true
}

// flag reports whether a boolean parameter is present and true.
func (c ComponentID) flag(name string) bool {
	v, ok := c.Param(name)
	if !ok {
		return false
	}

	b, isBool := v.(bool)

	return isBool && b
}

// hasUnknownParams reports whether any parameter is not defined by RFC 9421.
func (c ComponentID) hasUnknownParams() bool {
	for _, p := range c.params {
		if !slices.Contains(knownComponentParams, p.Name) {
			return true
		}
	}

	return false
}

// without returns a copy of the identifier with the named parameter removed.
func (c ComponentID) without(name string) ComponentID {
	params := make([]Param, 0, len(c.params))
	for _, p := range c.params {
		if p.Name != name {
			params = append(params, p)
		}
	}

	id, err := newComponentID(c.name, params)
	if err != nil {
		return c
	}

	return id
}

// splitQuoteAware splits s on delim while respecting "..." quoted regions.
// Backslash-escaped quotes (\") inside quoted strings are handled. Each
// resulting part is trimmed of whitespace and empty parts are skipped.
func splitQuoteAware(s string, delim byte) []string {
	var result []string
	var part strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inQuote {
			if ch == '\\' && i+1 < len(s) {
				part.WriteByte(ch)
				i++
				part.WriteByte(s[i])
				continue
			}

			if ch == '"' {
				inQuote = false
			}

			part.WriteByte(ch)
			continue
		}

		if ch == '"' {
			inQuote = true
			part.WriteByte(ch)
			continue
		}

		if ch == delim {
			p := strings.TrimSpace(part.String())
			if p != "" {
				result = append(result, p)
			}

			part.Reset()
			continue
		}

		part.WriteByte(ch)
	}

	if p := strings.TrimSpace(part.String()); p != "" {
		result = append(result, p)
	}

	return result
}
