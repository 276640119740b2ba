package query

import "strings"

// Tokenize splits a search string into tokens. The result always ends with
// an EOF token. Tokenize never fails: an unterminated quote becomes a WORD
// holding the rest of the input, which the parser rejects.
func Tokenize(text string) []Token {
	l := &lexer{src: text}
	var toks []Token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) emit(typ TokenType, n int) Token {
	tok := Token{Type: typ, Value: l.src[l.pos : l.pos+n], Pos: l.pos, End: l.pos + n}
	l.pos += n
	return tok
}

func (l *lexer) next() Token {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return Token{Type: TokenEOF, Pos: len(l.src), End: len(l.src)}
	}

	switch c := l.src[l.pos]; c {
	case '"', '\'':
		return l.quoted(c)
	case ':':
		if isSpace(l.peekAt(1)) {
			return l.emit(TokenValueSep, 1)
		}
		return l.emit(TokenColon, 1)
	case '.':
		return l.emit(TokenDot, 1)
	case '(':
		return l.emit(TokenLParen, 1)
	case ')':
		return l.emit(TokenRParen, 1)
	case '[':
		return l.emit(TokenLBracket, 1)
	case ']':
		return l.emit(TokenRBracket, 1)
	case '-':
		switch l.peekAt(1) {
		case '[':
			return l.emit(TokenRelStart, 2)
		case '>':
			return l.emit(TokenArrow, 2)
		}
		return l.emit(TokenDash, 1)
	}
	return l.word()
}

// word consumes up to whitespace or a delimiter. A '-' stays inside the word
// unless it opens "-[" or "->".
func (l *lexer) word() Token {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isSpace(c) || strings.IndexByte(`:.()[]"'`, c) >= 0 {
			break
		}
		if c == '-' && (l.peekAt(1) == '[' || l.peekAt(1) == '>') {
			break
		}
		l.pos++
	}
	val := l.src[start:l.pos]
	typ := TokenWord
	if kw, ok := keywords[val]; ok {
		typ = kw
	}
	return Token{Type: typ, Value: val, Pos: start, End: l.pos}
}

// quoted reads a value delimited by q. Only the matching quote can be
// backslash-escaped; any other backslash is kept literally.
func (l *lexer) quoted(q byte) Token {
	start := l.pos
	var b strings.Builder
	for i := start + 1; i < len(l.src); i++ {
		c := l.src[i]
		switch {
		case c == '\\' && i+1 < len(l.src) && l.src[i+1] == q:
			b.WriteByte(q)
			i++
		case c == q:
			l.pos = i + 1
			return Token{Type: TokenQuoted, Value: b.String(), Pos: start, End: l.pos}
		default:
			b.WriteByte(c)
		}
	}
	l.pos = len(l.src)
	return Token{Type: TokenWord, Value: l.src[start:], Pos: start, End: l.pos}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
