package grammar

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

type codeRange struct {
	from rune
	to   rune
}

// parseCharClass parses the body of a character class such as `0-9a-fA-F_`. A backslash escapes the
// next character; `\n`, `\r`, `\t`, and `\xHH` denote the usual codes.
func parseCharClass(s string) ([]codeRange, error) {
	if s == "" {
		return nil, fmt.Errorf("a character class needs at least one character")
	}

	var chars []rune
	var escaped []bool
	for i := 0; i < len(s); {
		c, w := utf8.DecodeRuneInString(s[i:])
		if c == utf8.RuneError && w <= 1 {
			return nil, fmt.Errorf("invalid UTF-8 sequence at %v", i)
		}
		i += w
		if c != '\\' {
			chars = append(chars, c)
			escaped = append(escaped, false)
			continue
		}
		if i >= len(s) {
			return nil, fmt.Errorf("incomplete escape sequence")
		}
		e, w := utf8.DecodeRuneInString(s[i:])
		i += w
		switch e {
		case 'n':
			c = '\n'
		case 'r':
			c = '\r'
		case 't':
			c = '\t'
		case 'x':
			if i+2 > len(s) {
				return nil, fmt.Errorf("incomplete escape sequence: \\x%v", s[i:])
			}
			v, err := strconv.ParseUint(s[i:i+2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid escape sequence: \\x%v", s[i:i+2])
			}
			i += 2
			c = rune(v)
		default:
			c = e
		}
		chars = append(chars, c)
		escaped = append(escaped, true)
	}

	var ranges []codeRange
	for i := 0; i < len(chars); i++ {
		if i+2 < len(chars) && chars[i+1] == '-' && !escaped[i+1] {
			from, to := chars[i], chars[i+2]
			if from > to {
				return nil, fmt.Errorf("a range must be in ascending order: %q-%q", from, to)
			}
			ranges = append(ranges, codeRange{from: from, to: to})
			i += 2
			continue
		}
		ranges = append(ranges, codeRange{from: chars[i], to: chars[i]})
	}

	return normalizeCodeRanges(ranges), nil
}

// normalizeCodeRanges sorts ranges and joins overlapping or adjacent ones.
func normalizeCodeRanges(ranges []codeRange) []codeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]codeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].from < sorted[j].from
	})
	merged := []codeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.from <= last.to+1 {
			if r.to > last.to {
				last.to = r.to
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
