package tag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/domain/tag"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Rock", "rock"},
		{"trims", "  jazz  ", "jazz"},
		{"collapses whitespace", "rock   alternatywny", "rock alternatywny"},
		{"hyphen to space", "rock-alternatywny", "rock alternatywny"},
		{"underscore to space", "Rock_Alternatywny", "rock alternatywny"},
		{"strips punctuation", "rock!&(alternatywny)", "rockalternatywny"},
		{"preserves diacritics", "Zażółć Gęślą", "zażółć gęślą"},
		{"keeps digits", "Top 40", "top 40"},
		{"empty", "", ""},
		{"only separators", "-_-", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tag.Normalize(tt.input))
		})
	}
}

func TestNormalizeAllVariantsCollapse(t *testing.T) {
	variants := []string{"Rock Alternatywny", "rock-alternatywny", "Rock_Alternatywny"}

	got := tag.NormalizeAll(variants)

	require.Equal(t, []string{"rock alternatywny"}, got)
}

func TestNormalizeAllDropsEmpty(t *testing.T) {
	got := tag.NormalizeAll([]string{"", "  ", "pop", "!!!"})

	require.Equal(t, []string{"pop"}, got)
}
