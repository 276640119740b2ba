// Package query implements the search language: a lexer, a recursive-descent
// parser producing a boolean AST of class and relation matches, and an
// evaluator that runs the AST against a loaded graph.
//
//	jdoe:                       instance with id jdoe
//	:Person.email: company      Person instances whose email contains "company"
//	(:Person)-[:MEMBER_OF]->    Person instances with a MEMBER_OF edge
//	-[:MEMBER_OF].role->: lead  edges whose role qualifier contains "lead"
//	NOT :Team AND (ops OR dev)  boolean combination; NOT > AND > OR
package query

import (
	"fmt"
	"strings"
)

// SyntaxError is returned by Parse. Position is the byte offset of the
// offending token in the query text.
type SyntaxError struct {
	Message  string
	Position int
	Token    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query: %s at position %d", e.Message, e.Position)
}

// Parse builds the AST for a token stream produced by Tokenize.
func Parse(tokens []Token) (Node, error) {
	if n := len(tokens); n == 0 || tokens[n-1].Type != TokenEOF {
		end := 0
		if n > 0 {
			end = tokens[n-1].End
		}
		tokens = append(tokens[:n:n], Token{Type: TokenEOF, Pos: end, End: end})
	}
	p := &parser{toks: tokens}

	for _, t := range tokens {
		if t.Type == TokenWord && (strings.HasPrefix(t.Value, `"`) || strings.HasPrefix(t.Value, "'")) {
			return nil, p.errorAt(t, "unterminated quoted value")
		}
	}
	if p.peek().Type == TokenEOF {
		return nil, p.errorAt(p.peek(), "empty query")
	}

	node, err := p.expression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorAt(tok, "unexpected %s", tok)
	}
	return node, nil
}

// ParseString tokenizes and parses q.
func ParseString(q string) (Node, error) {
	return Parse(Tokenize(q))
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(off int) Token {
	if i := p.pos + off; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ TokenType, what string) (Token, error) {
	tok := p.peek()
	if tok.Type != typ {
		return tok, p.errorAt(tok, "expected %s, got %s", what, tok)
	}
	return p.advance(), nil
}

func (p *parser) errorAt(tok Token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Position: tok.Pos, Token: tok.Value}
}

// expression := term (OR term)*
func (p *parser) expression() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenOr {
		p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

// term := factor (AND factor)*
func (p *parser) term() (Node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenAnd {
		p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

// factor := NOT factor | "(" expression ")" | relationMatch | classMatch | bareValue
func (p *parser) factor() (Node, error) {
	switch tok := p.peek(); tok.Type {
	case TokenNot:
		p.advance()
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	case TokenLParen:
		if p.entitySpecAhead() {
			return p.relationMatch()
		}
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenRelStart:
		return p.relationMatch()
	case TokenWord, TokenQuoted, TokenColon, TokenValueSep, TokenDot, TokenDash:
		return p.classMatch()
	default:
		return nil, p.errorAt(tok, "unexpected %s", tok)
	}
}

// entitySpecAhead reports whether the '(' at the cursor opens the entity spec
// of a relation pattern, i.e. its ')' is directly followed by "-[".
func (p *parser) entitySpecAhead() bool {
	for i := p.pos + 1; i < len(p.toks); i++ {
		switch p.toks[i].Type {
		case TokenRParen:
			return i+1 < len(p.toks) && p.toks[i+1].Type == TokenRelStart
		case TokenLParen, TokenEOF:
			return false
		}
	}
	return false
}

// classMatch := [id] ":" [Class] ["." property] [(":" | VALUE_SEP) value] | bareValue
func (p *parser) classMatch() (Node, error) {
	m := &ClassMatch{}

	switch tok := p.peek(); tok.Type {
	case TokenDot, TokenDash:
		return p.bareValue()
	case TokenWord, TokenQuoted:
		if next := p.peekAt(1).Type; next != TokenColon && next != TokenValueSep {
			return p.bareValue()
		}
		m.ID = p.advance().Value
	}

	switch tok := p.peek(); tok.Type {
	case TokenValueSep:
		// "id: value" leaves the class open
		p.advance()
		v, err := p.optionalValue()
		if err != nil {
			return nil, err
		}
		m.Value = v
		return m, nil
	case TokenColon:
		p.advance()
	default:
		return nil, p.errorAt(tok, "expected ':', got %s", tok)
	}

	if p.peek().Type == TokenWord {
		m.Class = p.advance().Value
	}
	if p.peek().Type == TokenDot {
		p.advance()
		prop, err := p.expect(TokenWord, "property name")
		if err != nil {
			return nil, err
		}
		m.Property = prop.Value
	}
	if t := p.peek().Type; t == TokenColon || t == TokenValueSep {
		p.advance()
		v, err := p.optionalValue()
		if err != nil {
			return nil, err
		}
		m.Value = v
	}
	return m, nil
}

func (p *parser) bareValue() (Node, error) {
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	return &ClassMatch{Value: &v}, nil
}

// relationMatch := ["(" [id] [":" Class] ")"] "-[" [":" relation] "]" ["." qualifier] "->" [(":" | VALUE_SEP) value]
func (p *parser) relationMatch() (Node, error) {
	m := &RelationMatch{}

	if p.peek().Type == TokenLParen {
		p.advance()
		if t := p.peek().Type; t == TokenWord || t == TokenQuoted {
			m.FromID = p.advance().Value
		}
		if p.peek().Type == TokenColon {
			p.advance()
			class, err := p.expect(TokenWord, "class name")
			if err != nil {
				return nil, err
			}
			m.FromClass = class.Value
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokenRelStart, "'-['"); err != nil {
		return nil, err
	}
	if p.peek().Type == TokenColon {
		p.advance()
		rel, err := p.expect(TokenWord, "relation name")
		if err != nil {
			return nil, err
		}
		m.Relation = rel.Value
	} else if p.peek().Type == TokenWord {
		m.Relation = p.advance().Value
	}
	if _, err := p.expect(TokenRBracket, "']'"); err != nil {
		return nil, err
	}
	if p.peek().Type == TokenDot {
		p.advance()
		q, err := p.expect(TokenWord, "qualifier name")
		if err != nil {
			return nil, err
		}
		m.Qualifier = q.Value
	}
	if _, err := p.expect(TokenArrow, "'->'"); err != nil {
		return nil, err
	}
	if t := p.peek().Type; t == TokenColon || t == TokenValueSep {
		p.advance()
		v, err := p.optionalValue()
		if err != nil {
			return nil, err
		}
		m.Value = v
	}
	return m, nil
}

// optionalValue reads the value after a separator. A separator that ends the
// operand means no value filter.
func (p *parser) optionalValue() (*string, error) {
	switch p.peek().Type {
	case TokenQuoted, TokenWord, TokenDot, TokenDash:
	default:
		return nil, nil
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// value reads a quoted value, or joins unquoted tokens that touch each other
// so that "company.com" and "2021-04" stay whole.
func (p *parser) value() (string, error) {
	first := p.peek()
	if first.Type == TokenQuoted {
		p.advance()
		return first.Value, nil
	}
	if first.Type != TokenWord && first.Type != TokenDot && first.Type != TokenDash {
		return "", p.errorAt(first, "expected value, got %s", first)
	}
	var b strings.Builder
	end := first.Pos
	for tok := p.peek(); joinable(tok.Type) && tok.Pos == end; tok = p.peek() {
		b.WriteString(tok.Value)
		end = tok.End
		p.advance()
	}
	return b.String(), nil
}

func joinable(t TokenType) bool {
	switch t {
	case TokenWord, TokenDot, TokenDash, TokenColon:
		return true
	}
	return false
}
