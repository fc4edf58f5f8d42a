package httpsig

import "fmt"

// validateComponents checks covered components against msg before signing
// or verifying: the reserved @signature-params component is rejected, then
// every component must resolve, then no component may be covered twice.
// Returned errors carry no kind; callers wrap them.
func validateComponents(msg *Message, components []string) error {
	ids := make([]ComponentID, len(components))
	parsed := make([]bool, len(components))

	for i, raw := range components {
		id, err := ParseComponentID(raw)
		if err != nil {
			continue
		}

		if id.Name() == ComponentSignatureParams {
			return fmt.Errorf("%w: %q", ErrInvalidComponent, raw)
		}

		ids[i] = id
		parsed[i] = true
	}

	for i, raw := range components {
		if !parsed[i] {
			return fmt.Errorf("%w: %q", ErrMissingComponent, raw)
		}

		if _, ok := msg.Value(ids[i]); !ok {
			return fmt.Errorf("%w: %q", ErrMissingComponent, raw)
		}
	}

	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if ids[i].Equal(ids[j]) {
				return fmt.Errorf("%w: %q", ErrDuplicatedComponent, components[j])
			}
		}
	}

	return nil
}
