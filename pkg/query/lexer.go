package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrUnknownToken    = errors.New("unknown token")
	ErrUnterminated    = errors.New("unterminated string literal")
	ErrMalformedNumber = errors.New("malformed number")
)

type lexer struct {
	input  string
	start  int
	pos    int
	tokens chan token
}

func lexString(input string) *lexer {
	return &lexer{
		input:  input,
		tokens: make(chan token),
	}
}

func (l *lexer) stream() *tokenStream {
	return newTokenStream(l.tokens)
}

func (l *lexer) read() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	c := rune(l.input[l.pos])
	l.pos++
	return c, true
}

func (l *lexer) unread() {
	if l.pos > l.start {
		l.pos--
	}
}

func (l *lexer) discard() {
	l.start = l.pos
}

func (l *lexer) consume() string {
	s := l.input[l.start:l.pos]
	l.start = l.pos
	return s
}

func (l *lexer) postToken(t lexType) {
	text := l.consume()
	l.tokens <- token{Pos: l.pos - len(text), Text: text, Type: t}
}

func (l *lexer) postErr(err error) {
	l.tokens <- token{Pos: l.pos, Text: err.Error(), Type: tErr}
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || isDigit(c)
}

func (l *lexer) lex() {
	defer close(l.tokens)
	for {
		l.skipWhitespace()
		c, ok := l.read()
		if !ok {
			l.tokens <- token{Pos: l.pos, Type: tEof}
			return
		}
		switch {
		case c == '\'' || c == '"':
			if !l.readString(c) {
				return
			}
		case isDigit(c):
			if !l.readNumber() {
				return
			}
		case c == '-' || c == '+':
			next, ok := l.read()
			if !ok || !isDigit(next) {
				l.postErr(fmt.Errorf("%w: %q", ErrUnknownToken, string(c)))
				return
			}
			if !l.readNumber() {
				return
			}
		case c == '*':
			l.postToken(tStar)
		case c == ',':
			l.postToken(tComma)
		case c == '(':
			l.postToken(tLpar)
		case c == ')':
			l.postToken(tRpar)
		case c == '=':
			l.postToken(tEq)
		case c == '!':
			next, ok := l.read()
			if !ok || next != '=' {
				l.postErr(fmt.Errorf("%w: %q", ErrUnknownToken, "!"))
				return
			}
			l.postToken(tNeq)
		case c == '<':
			next, ok := l.read()
			switch {
			case ok && next == '=':
				l.postToken(tLte)
			case ok && next == '>':
				l.postToken(tNeq)
			default:
				if ok {
					l.unread()
				}
				l.postToken(tLt)
			}
		case c == '>':
			next, ok := l.read()
			if ok && next == '=' {
				l.postToken(tGte)
			} else {
				if ok {
					l.unread()
				}
				l.postToken(tGt)
			}
		case isIdentStart(c):
			l.readWord()
		default:
			l.postErr(fmt.Errorf("%w: %q", ErrUnknownToken, string(c)))
			return
		}
	}
}

func (l *lexer) skipWhitespace() {
	for {
		c, ok := l.read()
		if !ok {
			l.discard()
			return
		}
		if !unicode.IsSpace(c) {
			l.unread()
			l.discard()
			return
		}
		l.discard()
	}
}

// readString consumes up to the closing quote; the posted token text is the
// unquoted, unescaped content.
func (l *lexer) readString(quote rune) bool {
	var sb strings.Builder
	for {
		c, ok := l.read()
		if !ok {
			l.postErr(ErrUnterminated)
			return false
		}
		switch c {
		case '\\':
			esc, ok := l.read()
			if !ok {
				l.postErr(ErrUnterminated)
				return false
			}
			sb.WriteRune(esc)
		case quote:
			l.discard()
			l.tokens <- token{Pos: l.pos - sb.Len() - 2, Text: sb.String(), Type: tString}
			return true
		default:
			sb.WriteRune(c)
		}
	}
}

func (l *lexer) readNumber() bool {
	isFloat := false
	for {
		c, ok := l.read()
		if !ok {
			break
		}
		if isDigit(c) {
			continue
		}
		if c == '.' && !isFloat {
			next, ok := l.read()
			if !ok || !isDigit(next) {
				l.postErr(ErrMalformedNumber)
				return false
			}
			isFloat = true
			continue
		}
		l.unread()
		break
	}
	if isFloat {
		l.postToken(tNumber)
	} else {
		l.postToken(tInt)
	}
	return true
}

var keywords = map[string]lexType{
	"select":   tSelect,
	"from":     tFrom,
	"where":    tWhere,
	"group":    tGroup,
	"by":       tBy,
	"as":       tAs,
	"distinct": tDistinct,
	"limit":    tLimit,
	"offset":   tOffset,
	"and":      tAnd,
	"or":       tOr,
	"not":      tNot,
}

func (l *lexer) readWord() {
	for {
		c, ok := l.read()
		if !ok {
			break
		}
		if !isIdentPart(c) {
			l.unread()
			break
		}
	}
	word := l.input[l.start:l.pos]
	if t, ok := keywords[strings.ToLower(word)]; ok {
		l.postToken(t)
		return
	}
	l.postToken(tIdentifier)
}
