package textbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/margin/internal/render"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, render.Token("epubcfi(/6/2!/4:0)"), pointToken(0, 0))
	assert.Equal(t, render.Token("epubcfi(/6/8!/4,:3,:9)"), rangeToken(3, 3, 9))
}

func TestParseCFI(t *testing.T) {
	c, err := parseCFI("epubcfi(/6/8!/4,:3,:9)")
	require.NoError(t, err)
	assert.Equal(t, cfi{spine: 3, start: 3, end: 9, isRange: true}, c)

	c, err = parseCFI("epubcfi(/6/2!/4:17)")
	require.NoError(t, err)
	assert.Equal(t, cfi{spine: 0, start: 17, end: 17}, c)

	c, err = parseCFI("epubcfi(/6/4!/4)")
	require.NoError(t, err)
	assert.Equal(t, cfi{spine: 1}, c)
}

func TestParseCFI_Invalid(t *testing.T) {
	for _, tok := range []render.Token{
		"epubcfi(/6/3!/4:0)",
		"epubcfi(/6/0!/4:0)",
		"epubcfi(/6/2!/4:x)",
		"epubcfi(/6/2!/4,:1)",
		"c1.xhtml",
	} {
		_, err := parseCFI(tok)
		assert.ErrorIs(t, err, render.ErrUnknownToken, "token %s", tok)
	}

	_, err := parseCFI("epubcfi(/6/2!/4,:5,:5)")
	assert.ErrorIs(t, err, render.ErrInvalidRange)
}

func TestParseCFI_OutOfRangeNumbers(t *testing.T) {
	for _, tok := range []render.Token{
		"epubcfi(/6/2!/4:99999999999999999999)",
		"epubcfi(/6/2!/4,:0,:99999999999999999999)",
		"epubcfi(/6/99999999999999999998!/4:0)",
	} {
		_, err := parseCFI(tok)
		assert.ErrorIs(t, err, render.ErrUnknownToken, "token %s", tok)
	}
}

func TestIsCFI(t *testing.T) {
	assert.True(t, isCFI("epubcfi(/6/2!/4:0)"))
	assert.False(t, isCFI("c1.xhtml#epubcfi("))
	assert.False(t, isCFI(""))
}
