package httpsig

import (
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// SignatureBase builds the signature base string per RFC 9421 Section 2.5.
//
// Each covered component produces a line "<component-id>": <value>\n and the
// final line is "@signature-params": <params> without a trailing newline.
// A component without a value in msg yields ErrMissingComponent; callers
// normally validate presence before building the base.
func SignatureBase(msg *Message, components []string, params Params) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: %w", ErrConstruction, ErrNoMessage)
	}

	ids, err := parseComponentIDs(components)
	if err != nil {
		return "", err
	}

	base, err := signatureBase(msg, ids, params)
	if err != nil && !isKind(err) {
		return "", fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	return base, err
}

func signatureBase(msg *Message, ids []ComponentID, params Params) (string, error) {
	var base strings.Builder

	for _, id := range ids {
		val, ok := msg.Value(id)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingComponent, id.Raw())
		}

		fmt.Fprintf(&base, "%s: %s\n", id.String(), val)
	}

	sigParams, err := serializeInnerList(ids, params)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&base, "%q: %s", ComponentSignatureParams, sigParams)

	return base.String(), nil
}

// SignatureParams returns the @signature-params value for the given
// components and parameters, e.g. ("@method" "@path");created=1618884473.
func SignatureParams(components []string, params Params) (string, error) {
	ids, err := parseComponentIDs(components)
	if err != nil {
		return "", err
	}

	return serializeInnerList(ids, params)
}

func parseComponentIDs(components []string) ([]ComponentID, error) {
	ids := make([]ComponentID, 0, len(components))

	for _, raw := range components {
		id, err := ParseComponentID(raw)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func innerList(ids []ComponentID, params Params) httpsfv.InnerList {
	items := make([]httpsfv.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, id.Item())
	}

	return httpsfv.InnerList{Items: items, Params: params.sfv()}
}

func serializeInnerList(ids []ComponentID, params Params) (string, error) {
	s, err := httpsfv.Marshal(innerList(ids, params))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	return s, nil
}
