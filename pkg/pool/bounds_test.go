package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name     string
		minimum  int
		maximum  int
		expected bool
	}{
		{"zero minimum", 0, 1, true},
		{"equal bounds", 4, 4, true},
		{"defaults", DefaultMinimumSize, DefaultMaximumSize, true},
		{"negative minimum", -1, 4, false},
		{"zero maximum", 0, 0, false},
		{"minimum above maximum", 5, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBounds(tt.minimum, tt.maximum)
			if tt.expected {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))

			var perr *poolerrors.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.minimum, perr.Details["minimum"])
			assert.Equal(t, tt.maximum, perr.Details["maximum"])
		})
	}
}

func TestNewFillsToMinimum(t *testing.T) {
	for _, bounds := range [][2]int{{0, 1}, {1, 1}, {3, 5}, {8, 8}} {
		p, err := New[*widget](
			WithBounds[*widget](bounds[0], bounds[1]),
			WithLogger[*widget](testutil.TestLogger(t)),
		)
		require.NoError(t, err)
		assert.Equal(t, bounds[0], p.Len(), "bounds %v", bounds)
		require.NoError(t, p.Close())
	}
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	_, err := New[*widget](WithBounds[*widget](3, 2))
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestSetBoundsKeepsStateOnError(t *testing.T) {
	p, err := New[*widget](
		WithBounds[*widget](2, 4),
		WithLogger[*widget](testutil.TestLogger(t)),
	)
	require.NoError(t, err)
	defer p.Close()

	require.Error(t, p.SetMinimumSize(5))
	require.Error(t, p.SetMaximumSize(0))
	require.Error(t, p.SetBounds(-1, 3))

	minimum, maximum := p.Bounds()
	assert.Equal(t, 2, minimum)
	assert.Equal(t, 4, maximum)
	assert.Equal(t, 2, p.Len())
}

func TestSetBoundsAdjusts(t *testing.T) {
	p, err := New[*widget](
		WithBounds[*widget](1, 4),
		WithDiagnostics[*widget](),
		WithLogger[*widget](testutil.TestLogger(t)),
	)
	require.NoError(t, err)
	defer p.Close()

	// Growing past the queue capacity
	require.NoError(t, p.SetBounds(20, 32))
	assert.Equal(t, 20, p.Len())

	require.NoError(t, p.SetBounds(0, 3))
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, uint64(17), p.Stats().Overflow)

	require.NoError(t, p.SetMinimumSize(3))
	assert.Equal(t, 3, p.Len())

	require.NoError(t, p.SetMaximumSize(10))
	minimum, maximum := p.Bounds()
	assert.Equal(t, 3, minimum)
	assert.Equal(t, 10, maximum)
}
