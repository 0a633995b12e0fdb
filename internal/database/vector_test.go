package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorLiteralRoundTrip(t *testing.T) {
	literal := VectorLiteral([]float64{1.5, -2, 0.25})
	require.Equal(t, "[1.5,-2,0.25]", literal)

	floats, err := ParseVector(literal)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2, 0.25}, floats)
}

func TestParseVectorWhitespaceAndEmpty(t *testing.T) {
	floats, err := ParseVector(" [0.1, 0.2] ")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2}, floats)

	floats, err = ParseVector("[]")
	require.NoError(t, err)
	require.NotNil(t, floats)
	require.Empty(t, floats)
}

func TestParseVectorMalformed(t *testing.T) {
	_, err := ParseVector("[1.0,oops]")
	require.Error(t, err)

	_, err = ParseVector("1.0,2.0")
	require.Error(t, err)

	_, err = ParseVector("")
	require.Error(t, err)
}

func TestParseVectorOfDim(t *testing.T) {
	floats, err := ParseVectorOfDim("[1,2,3]", 3)
	require.NoError(t, err)
	require.Len(t, floats, 3)

	_, err = ParseVectorOfDim("[1,2,3]", 1536)
	require.Error(t, err)
}
