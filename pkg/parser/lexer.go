package parser

import (
	"strings"
)

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tNumber
	tString
	tPunct
)

type token struct {
	kind tokKind
	text string // unquoted for strings
	off  int    // offset in the template source
}

var twoCharPuncts = []string{"==", "!=", "<=", ">=", "&&", "||"}

// lex splits command arguments into tokens. base is the offset of src in the
// template, used for positions.
func (p *parser) lex(src string, base int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tIdent, text: src[start:i], off: base + start})

		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tNumber, text: src[start:i], off: base + start})

		case c == '"' || c == '\'':
			s, n, err := unquote(src[i:])
			if err != nil {
				return nil, p.errorf(base+i, "%v", err)
			}
			toks = append(toks, token{kind: tString, text: s, off: base + i})
			i += n

		default:
			text := ""
			for _, two := range twoCharPuncts {
				if strings.HasPrefix(src[i:], two) {
					text = two
					break
				}
			}
			if text == "" {
				if !strings.ContainsRune("()[],.=<>+-*/%!#?", rune(c)) {
					return nil, p.errorf(base+i, "unexpected character %q", c)
				}
				text = string(c)
			}
			toks = append(toks, token{kind: tPunct, text: text, off: base + i})
			i += len(text)
		}
	}
	toks = append(toks, token{kind: tEOF, off: base + len(src)})
	return toks, nil
}

// unquote reads the quoted string at the start of s and returns its value and
// the number of bytes consumed.
func unquote(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errUnterminatedString
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
