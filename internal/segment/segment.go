// Package segment splits a multi-account credit report into per-account
// text blocks. Segmentation is advisory: downstream extraction tolerates
// blocks that mix unrelated content.
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMinLength is the shortest text worth segmenting.
const DefaultMinLength = 50

var (
	separatorRe = regexp.MustCompile(`^\s*(?:={3,}|-{3,}|_{3,}|\*{3,}|#{3,}|~{3,})\s*$`)
	keyValueRe  = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z0-9 /#&()'.-]{1,40}:\s*\S`)
)

// Segmenter splits report text into account blocks.
type Segmenter struct {
	MinLength int
}

// New returns a Segmenter with the given minimum length; values <= 0 use
// DefaultMinLength.
func New(minLength int) *Segmenter {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Segmenter{MinLength: minLength}
}

// Segment splits text into account blocks. Text shorter than MinLength
// yields nil. When no boundary is found the whole text is one block.
func (s *Segmenter) Segment(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimSpace(text)
	minLen := s.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if len(trimmed) < minLen {
		return nil
	}

	lines := strings.Split(trimmed, "\n")

	if blocks := splitOnSeparators(lines); len(blocks) > 1 {
		return blocks
	}
	if blocks := splitOnHeaders(lines); len(blocks) > 1 {
		return blocks
	}
	return []string{trimmed}
}

// Segment splits text using the default minimum length.
func Segment(text string) []string {
	return New(DefaultMinLength).Segment(text)
}

// splitOnSeparators cuts at lines made of one repeated punctuation mark.
func splitOnSeparators(lines []string) []string {
	var blocks []string
	var cur []string
	found := false
	for _, line := range lines {
		if separatorRe.MatchString(line) {
			found = true
			blocks = appendBlock(blocks, cur)
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	if !found {
		return nil
	}
	return appendBlock(blocks, cur)
}

// splitOnHeaders starts a new block at every all-caps name line that is
// directly followed by a "Key: value" line. Text before the first header is
// kept as its own block.
func splitOnHeaders(lines []string) []string {
	var starts []int
	for i, line := range lines {
		if !isNameHeader(line) {
			continue
		}
		if next := nextNonBlank(lines, i+1); next >= 0 && keyValueRe.MatchString(lines[next]) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return nil
	}

	var blocks []string
	blocks = appendBlock(blocks, lines[:starts[0]])
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks = appendBlock(blocks, lines[start:end])
	}
	return blocks
}

// isNameHeader reports whether line looks like a creditor or furnisher
// name: at least three letters, no lowercase letters, no colon.
func isNameHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.Contains(line, ":") || len(line) > 80 {
		return false
	}
	letters := 0
	for _, r := range line {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r):
			letters++
		case unicode.IsDigit(r), unicode.IsSpace(r), strings.ContainsRune("&.,'/-()#", r):
		default:
			return false
		}
	}
	return letters >= 3
}

func nextNonBlank(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

func appendBlock(blocks []string, lines []string) []string {
	block := strings.TrimSpace(strings.Join(lines, "\n"))
	if block == "" {
		return blocks
	}
	return append(blocks, block)
}
