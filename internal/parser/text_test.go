package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/charmap"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Bracketed worker name", "Anti-Aging (Shahebazuddin)", "Anti-Aging"},
		{"Leading artifact", "=- Compatible with Sennheiser", "Compatible with Sennheiser"},
		{"Inline artifact", "Product =- with weird characters", "Product with weird characters"},
		{"Mixed artifacts", "Multiple =--= patterns =-", "Multiple patterns"},
		{"HTML entity", "Price &amp; Quality", "Price & Quality"},
		{"Clean text untouched", "Normal text without issues", "Normal text without issues"},
		{"Short bracket kept", "(25mm) technical specs", "(25mm) technical specs"},
		{"Currency bracket kept", "Price (USD): $50", "Price (USD): $50"},
		{"Unbracketed name kept", "Customer John Doe said", "Customer John Doe said"},
		{"Two word bracket removed", "Product (Worker Name) description", "Product description"},
		{"Excel error", "#NAME? Fishing Reel", "Fishing Reel"},
		{"Empty", "", ""},
		{
			"Long description",
			"=- the premium Fishing Reel is designed for those who enjoy Fishing.",
			"the premium Fishing Reel is designed for those who enjoy Fishing.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestCleanText_Mojibake(t *testing.T) {
	garble := func(s string) string {
		out, err := charmap.Windows1252.NewDecoder().String(s)
		if err != nil {
			t.Fatalf("garble %q: %v", s, err)
		}
		return out
	}

	assert.Equal(t, "Set - 3 pieces", CleanText(garble("Set – 3 pieces")))
	assert.Equal(t, "It's new", CleanText(garble("It’s new")))
	assert.Equal(t, `"Best" seller`, CleanText(garble("“Best” seller")))
	assert.Equal(t, "Wait...", CleanText(garble("Wait…")))
}
