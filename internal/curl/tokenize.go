package curl

import (
	"errors"
	"strings"
)

var (
	errUnterminatedQuote  = errors.New("unterminated quoted string")
	errUnterminatedEscape = errors.New("unterminated escape sequence")
)

// lexer splits a shell command line the way a POSIX shell would for the
// subset people paste: single quotes are literal, double quotes honour
// backslashes, $'...' decodes C escapes, and a backslash before a line
// break joins the lines.
type lexer struct {
	inSingle bool
	inDouble bool
	inANSI   bool
	escape   bool
	skipLF   bool

	buf     strings.Builder
	started bool
	out     []string
}

func splitTokens(input string) ([]string, error) {
	lx := &lexer{}
	rs := []rune(input)
	for i := 0; i < len(rs); i++ {
		if err := lx.step(rs, &i); err != nil {
			return nil, err
		}
	}
	if lx.escape {
		return nil, errUnterminatedEscape
	}
	if lx.inSingle || lx.inDouble || lx.inANSI {
		return nil, errUnterminatedQuote
	}
	lx.flush()
	return lx.out, nil
}

func (lx *lexer) emit(r rune) {
	lx.buf.WriteRune(r)
	lx.started = true
}

// flush ends the current word. Quoted empty strings ('' or "") still count
// as a word.
func (lx *lexer) flush() {
	if !lx.started {
		return
	}
	lx.out = append(lx.out, lx.buf.String())
	lx.buf.Reset()
	lx.started = false
}

func (lx *lexer) step(rs []rune, i *int) error {
	r := rs[*i]

	if lx.skipLF {
		lx.skipLF = false
		if r == '\n' {
			return nil
		}
	}

	if lx.escape {
		lx.escape = false
		switch {
		case lx.inANSI:
			val, err := ansiEscape(rs, i)
			if err != nil {
				return err
			}
			lx.emit(val)
		case r == '\n' || r == '\r':
			lx.skipLF = r == '\r'
		case lx.inDouble && !strings.ContainsRune("\"\\$`", r):
			lx.emit('\\')
			lx.emit(r)
		default:
			lx.emit(r)
		}
		return nil
	}

	switch {
	case lx.inANSI:
		switch r {
		case '\\':
			lx.escape = true
		case '\'':
			lx.inANSI = false
		default:
			lx.emit(r)
		}
	case lx.inSingle:
		if r == '\'' {
			lx.inSingle = false
		} else {
			lx.emit(r)
		}
	case r == '\\':
		lx.escape = true
	case lx.inDouble:
		if r == '"' {
			lx.inDouble = false
		} else {
			lx.emit(r)
		}
	case r == '\'':
		lx.inSingle = true
		lx.started = true
	case r == '"':
		lx.inDouble = true
		lx.started = true
	case r == '$' && *i+1 < len(rs) && rs[*i+1] == '\'':
		lx.inANSI = true
		lx.started = true
		*i++
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		lx.flush()
	default:
		lx.emit(r)
	}
	return nil
}

func ansiEscape(rs []rune, i *int) (rune, error) {
	switch r := rs[*i]; r {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'x':
		return readHex(rs, i, 2)
	case 'u':
		return readHex(rs, i, 4)
	default:
		return r, nil
	}
}

func readHex(rs []rune, i *int, n int) (rune, error) {
	if *i+n >= len(rs) {
		return 0, errors.New("invalid hex escape")
	}
	val := 0
	for j := 1; j <= n; j++ {
		d, ok := hexVal(rs[*i+j])
		if !ok {
			return 0, errors.New("invalid hex escape")
		}
		val = val*16 + d
	}
	*i += n
	return rune(val), nil
}

func hexVal(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	default:
		return 0, false
	}
}
