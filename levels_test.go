package velocilog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCharMatchesPrefixLetters(t *testing.T) {
	cases := map[Level]byte{Debug: 'D', Info: 'I', Warn: 'W', Error: 'E', Fatal: 'F'}
	for lvl, want := range cases {
		assert.Equal(t, want, lvl.Char())
	}
}

func TestLevelStringNames(t *testing.T) {
	assert.Equal(t, "DEBUG", Debug.String())
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestParseLevelCaseInsensitiveAndAliases(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, Warn, lvl)

	lvl, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, Error, lvl)
}

func TestParseLevelRejectsUnknownName(t *testing.T) {
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
