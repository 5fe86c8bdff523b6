package rtf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{\rtf1\ansi\ansicpg1252\deff0{\fonttbl{\f0\fswiss Arial;}}{\colortbl;\red0\green0\blue0;}
{\*\generator Realworks 12.1;}
\pard\plain\f0\fs20{\b Keizersgracht 10, 1015 CJ Amsterdam}\par
Transactieprijs: \'80 520.000,-\par
Woonoppervlakte\tab 82 m\'b2\par
Caf\'e9 \u233? om de hoek \{oud\}\par
\par
}`

func TestConvert(t *testing.T) {
	text, err := Convert([]byte(sampleDoc))
	require.NoError(t, err)

	expected := "Keizersgracht 10, 1015 CJ Amsterdam\n" +
		"Transactieprijs: € 520.000,-\n" +
		"Woonoppervlakte 82 m²\n" +
		"Café é om de hoek {oud}"
	assert.Equal(t, expected, text)
}

func TestConvertSkipsDestinations(t *testing.T) {
	doc := `{\rtf1{\info{\title Geheim}{\author X}}{\*\unknowndest verborgen}zichtbaar}`
	text, err := Convert([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "zichtbaar", text)
}

func TestConvertUnicodeSkipCount(t *testing.T) {
	doc := `{\rtf1\uc2 Prijs \u8364\'80\'80 100}`
	text, err := Convert([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Prijs € 100", text)
}

func TestConvertRejectsPlainText(t *testing.T) {
	_, err := Convert([]byte("gewone tekst"))
	assert.ErrorIs(t, err, ErrNotRTF)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text passes through collapsed",
			input:    "Keizersgracht   10,\n\n1015 CJ Amsterdam",
			expected: "Keizersgracht 10, 1015 CJ Amsterdam",
		},
		{
			name:     "unbalanced braces",
			input:    `{\rtf1 {\b Open groep \par tekst`,
			expected: "Open groep\ntekst",
		},
		{
			name:     "stray closing braces",
			input:    `{\rtf1 tekst}}} meer`,
			expected: "tekst meer",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.expected, Extract([]byte(tt.input)))
			})
		})
	}
}

func TestStrip(t *testing.T) {
	input := `\b Bouwjaar\b0  1920 \u8364? 5\'e9 \{x\}
{\i regel}`
	assert.Equal(t, "Bouwjaar 1920 € 5é {x} regel", Strip(input))
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "woning.rtf")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0644))

	text, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Keizersgracht 10, 1015 CJ Amsterdam")

	_, err = ExtractFile(filepath.Join(dir, "missing.rtf"))
	assert.Error(t, err)
}
