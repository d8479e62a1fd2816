package pool

import "github.com/ajitpratap0/reservoir/pkg/poolerrors"

const (
	// DefaultMinimumSize is the idle reserve a pool keeps when no bounds are given.
	DefaultMinimumSize = 1
	// DefaultMaximumSize caps the idle reserve when no bounds are given.
	DefaultMaximumSize = 16
)

// ValidateBounds checks 0 <= minimum <= maximum and maximum >= 1.
func ValidateBounds(minimum, maximum int) error {
	var msg string
	switch {
	case minimum < 0:
		msg = "minimum size must not be negative"
	case maximum < 1:
		msg = "maximum size must be at least 1"
	case minimum > maximum:
		msg = "minimum size must not exceed maximum size"
	default:
		return nil
	}
	return poolerrors.New(poolerrors.ErrorTypeConfig, msg).
		WithDetail("minimum", minimum).
		WithDetail("maximum", maximum)
}
