// Package doctree derives the navigable table of contents from document paths.
//
// Path segments may carry a numeric ordering prefix ("02_setup"). The prefix
// orders siblings and is stripped from the displayed title.
package doctree

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var orderPrefix = regexp.MustCompile(`^(\d+)_(.*)$`)

// Classification is the ordering information derived from one path segment.
type Classification struct {
	// SortKey is the numeric prefix, or +Inf when the segment has none.
	SortKey float64
	// Label is the segment with the prefix and its underscore removed.
	Label string
}

// Unordered reports whether the segment had no numeric prefix.
func (c Classification) Unordered() bool {
	return math.IsInf(c.SortKey, 1)
}

// Classify splits a raw path segment into its sort key and label.
// It never fails: segments without a "<digits>_" prefix sort after all
// numbered siblings and keep their full text as the label.
func Classify(segment string) Classification {
	m := orderPrefix.FindStringSubmatch(segment)
	if m == nil {
		return Classification{SortKey: math.Inf(1), Label: segment}
	}
	// ParseFloat accepts digit runs longer than an int64 holds.
	key, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Classification{SortKey: math.Inf(1), Label: segment}
	}
	return Classification{SortKey: key, Label: m[2]}
}

var wordSep = regexp.MustCompile(`[/-]`)

// Title turns a label into a display title: split on '/' or '-', upper-case
// the first character of each word, join with spaces. Empty words survive,
// so "a--b" becomes "A  B".
func Title(label string) string {
	words := wordSep.Split(label, -1)
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
