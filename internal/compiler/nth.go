package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jdmiranda/cheerio-select/internal/parser"
)

// parseNth parses an an+b expression ("even", "odd", "3", "2n+1", "-n+3")
// into its step and offset.
func parseNth(s string) (step, offset int, err error) {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	switch s {
	case "":
		return 0, 0, fmt.Errorf("%w: empty nth expression", parser.ErrSyntax)
	case "even":
		return 2, 0, nil
	case "odd":
		return 2, 1, nil
	}
	i := strings.IndexByte(s, 'n')
	if i < 0 {
		offset, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: invalid nth expression %q", parser.ErrSyntax, s)
		}
		return 0, offset, nil
	}
	switch coeff := s[:i]; coeff {
	case "", "+":
		step = 1
	case "-":
		step = -1
	default:
		step, err = strconv.Atoi(coeff)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: invalid nth expression %q", parser.ErrSyntax, s)
		}
	}
	rest := s[i+1:]
	if rest == "" {
		return step, 0, nil
	}
	if rest[0] != '+' && rest[0] != '-' {
		return 0, 0, fmt.Errorf("%w: invalid nth expression %q", parser.ErrSyntax, s)
	}
	offset, err = strconv.Atoi(rest)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid nth expression %q", parser.ErrSyntax, s)
	}
	return step, offset, nil
}

// nthMatch reports whether a 1-based position satisfies an+b: there must be
// a non-negative integer n with position == step*n + offset.
func nthMatch(step, offset, position int) bool {
	if step == 0 {
		return position == offset
	}
	delta := position - offset
	return delta%step == 0 && delta/step >= 0
}
