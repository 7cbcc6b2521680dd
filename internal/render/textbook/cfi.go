package textbook

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/render"
)

// Location tokens follow the shape of EPUB canonical fragment identifiers:
// the spine step is 2*(index+1) and character offsets are rune offsets
// into the decoded chapter text.
//
//	epubcfi(/6/4!/4:120)          point at rune 120 of the second chapter
//	epubcfi(/6/4!/4,:120,:135)    range [120, 135) of the second chapter

var cfiPattern = regexp.MustCompile(`^epubcfi\(/6/(\d+)!/4(?:,:(\d+),:(\d+)|:(\d+))?\)$`)

type cfi struct {
	spine   int
	start   int
	end     int
	isRange bool
}

func spineStep(index int) int {
	return 2 * (index + 1)
}

func pointToken(index, offset int) render.Token {
	return render.Token(fmt.Sprintf("epubcfi(/6/%d!/4:%d)", spineStep(index), offset))
}

func rangeToken(index, start, end int) render.Token {
	return render.Token(fmt.Sprintf("epubcfi(/6/%d!/4,:%d,:%d)", spineStep(index), start, end))
}

func isCFI(token render.Token) bool {
	return len(token) > 8 && token[:8] == "epubcfi("
}

func parseCFI(token render.Token) (cfi, error) {
	m := cfiPattern.FindStringSubmatch(string(token))
	if m == nil {
		return cfi{}, errors.Wrapf(render.ErrUnknownToken, "malformed location '%s'", token)
	}

	step, err := strconv.Atoi(m[1])
	if err != nil || step < 2 || step%2 != 0 {
		return cfi{}, errors.Wrapf(render.ErrUnknownToken, "invalid spine step in '%s'", token)
	}

	c := cfi{spine: step/2 - 1}

	switch {
	case m[2] != "":
		if c.start, err = strconv.Atoi(m[2]); err == nil {
			c.end, err = strconv.Atoi(m[3])
		}
		if err != nil {
			return cfi{}, errors.Wrapf(render.ErrUnknownToken, "invalid offset in '%s'", token)
		}
		c.isRange = true
		if c.end <= c.start {
			return cfi{}, errors.Wrapf(render.ErrInvalidRange, "empty range in '%s'", token)
		}
	case m[4] != "":
		if c.start, err = strconv.Atoi(m[4]); err != nil {
			return cfi{}, errors.Wrapf(render.ErrUnknownToken, "invalid offset in '%s'", token)
		}
		c.end = c.start
	}

	return c, nil
}
