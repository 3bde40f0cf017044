package cvaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRoundTrip(t *testing.T) {
	ex, err := Plain(29)
	require.NoError(t, err)
	base, kind, page := ex.Decompose()
	assert.Equal(t, uint16(29), base)
	assert.Equal(t, PageNone, kind)
	assert.Equal(t, uint16(0), page)
}

func TestExtendedPageRoundTrip(t *testing.T) {
	ex, err := NewExtendedVariableIndex(300, PageExtended, 0x0102)
	require.NoError(t, err)
	base, kind, page := ex.Decompose()
	assert.Equal(t, uint16(300), base)
	assert.Equal(t, PageExtended, kind)
	assert.Equal(t, uint16(0x0102), page)

	cv31, cv32, ok := ex.ExtendedPage()
	require.True(t, ok)
	assert.Equal(t, byte(0x01), cv31)
	assert.Equal(t, byte(0x02), cv32)
}

func TestSUSIPageRoundTrip(t *testing.T) {
	for kind, want := range map[PageKind]uint8{
		PageSUSI1: 1,
		PageSUSI2: 2,
		PageSUSI3: 3,
	} {
		ex, err := NewExtendedVariableIndex(900, kind, 1)
		require.NoError(t, err)
		idx, ok := ex.SUSIPage()
		require.True(t, ok)
		assert.Equal(t, want, idx)
		assert.Equal(t, uint16(900), ex.VariableIndex())
	}
}

// Composing with pageValue == 0 always collapses to PageNone, regardless
// of the requested kind (spec §4.2).
func TestZeroPageCollapsesToNone(t *testing.T) {
	ex, err := NewExtendedVariableIndex(300, PageExtended, 0)
	require.NoError(t, err)
	assert.Equal(t, PageNone, ex.PageKind())
	_, _, ok := ex.ExtendedPage()
	assert.False(t, ok)
}

func TestBaseOutOfRange(t *testing.T) {
	_, err := Plain(0)
	assert.ErrorIs(t, err, ErrBaseOutOfRange)
	_, err = Plain(1025)
	assert.ErrorIs(t, err, ErrBaseOutOfRange)
}

func TestPageKindBaseMismatch(t *testing.T) {
	_, err := NewExtendedVariableIndex(29, PageExtended, 5)
	assert.ErrorIs(t, err, ErrBadPageKind)
	_, err = NewExtendedVariableIndex(29, PageSUSI1, 1)
	assert.ErrorIs(t, err, ErrBadPageKind)
}

func TestNonExtendedPageAccessorsFail(t *testing.T) {
	ex, err := Plain(29)
	require.NoError(t, err)
	_, ok := ex.SUSIPage()
	assert.False(t, ok)
	_, _, ok = ex.ExtendedPage()
	assert.False(t, ok)
}
