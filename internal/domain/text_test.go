package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Missile Strikes TEL AVIV", "missile strikes tel aviv"},
		{"punctuation collapses", "Blast -- in   Beirut!!", "blast in beirut"},
		{"curly apostrophe splits", "Tehran’s airspace", "tehran s airspace"},
		{"hyphenated name", "Deir ez-Zor", "deir ez zor"},
		{"fullwidth digits", "ＩＤＦ 24", "idf 24"},
		{"empty", "", ""},
		{"only punctuation", "--!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.input))
		})
	}
}

func TestTitleTokens(t *testing.T) {
	assert.Equal(t,
		[]string{"aviv", "missile", "strikes", "suburb", "tel"},
		TitleTokens("Missile strikes Tel Aviv suburb"))

	assert.Equal(t,
		[]string{"beirut", "blast"},
		TitleTokens("The blast in Beirut: a blast"), "stopwords dropped and duplicates removed")

	assert.Empty(t, TitleTokens("a of the"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdef", 3))
	assert.Equal(t, "äöü…", Truncate("äöüß", 3), "counts runes not bytes")
}
