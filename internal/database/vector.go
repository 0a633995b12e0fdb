package database

import (
	"fmt"
	"strconv"
	"strings"
)

// The embedding column is write-only for the ORM: the stores read and
// write it through raw SQL carrying the pgvector text literal
// "[0.1,0.2,...]". On SQLite the same literal lives in a TEXT column and
// similarity search parses it back in process. These two functions are
// that codec; there is no scanner/valuer type because no GORM model maps
// the column.

// VectorLiteral renders floats as a pgvector text literal.
func VectorLiteral(floats []float64) string {
	var b strings.Builder
	// ~12 bytes per element covers the typical formatted float plus comma.
	b.Grow(len(floats)*12 + 2)
	b.WriteByte('[')
	for i, f := range floats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector decodes a pgvector text literal. The empty literal "[]"
// decodes to an empty, non-nil slice.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a vector literal: %q", truncate(s))
	}

	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return []float64{}, nil
	}

	parts := strings.Split(body, ",")
	floats := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		floats[i] = f
	}
	return floats, nil
}

// ParseVectorOfDim decodes a literal and enforces the deployment's
// configured dimension, the invariant behind every stored vector.
func ParseVectorOfDim(s string, dim int) ([]float64, error) {
	floats, err := ParseVector(s)
	if err != nil {
		return nil, err
	}
	if len(floats) != dim {
		return nil, fmt.Errorf("vector has %d dimensions, expected %d", len(floats), dim)
	}
	return floats, nil
}
