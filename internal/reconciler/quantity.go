package reconciler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned for input rejected before it reaches the store
var ErrInvalidFormat = errors.New("invalid format")

var quantityPattern = regexp.MustCompile(`^(\d+)\s?([a-zA-Z]+)$`)

// ValidateQuantity normalizes a grocery quantity such as "2kg" or "2 kg" to
// "2 kg". Decimals, missing units and anything else are rejected.
func ValidateQuantity(raw string) (string, error) {
	m := quantityPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("quantity %q must look like \"2 kg\": %w", raw, ErrInvalidFormat)
	}
	return m[1] + " " + m[2], nil
}
