package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"DashSeparator", "Big Story - Example News", "Big Story"},
		{"PipeSeparator", "Big Story | Example News", "Big Story"},
		{"ColonSeparator", "Big Story: the sequel", "Big Story"},
		{"NoSeparator", "No Separator Headline", "No Separator Headline"},
		{"FirstSeparatorWins", "A - B | C: D", "A"},
		{"Whitespace", "  Padded Headline  - Site ", "Padded Headline"},
		{"Empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanTitle(tc.input))
		})
	}
}
