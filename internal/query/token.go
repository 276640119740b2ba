package query

import "fmt"

// TokenType classifies a lexed token.
type TokenType string

// Token types.
const (
	TokenEOF      TokenType = "EOF"
	TokenWord     TokenType = "WORD"
	TokenQuoted   TokenType = "QUOTED_VALUE"
	TokenColon    TokenType = "COLON"
	TokenValueSep TokenType = "VALUE_SEP" // ':' followed by whitespace
	TokenDot      TokenType = "DOT"
	TokenLParen   TokenType = "LPAREN"
	TokenRParen   TokenType = "RPAREN"
	TokenLBracket TokenType = "LBRACKET"
	TokenRBracket TokenType = "RBRACKET"
	TokenRelStart TokenType = "REL_START" // -[
	TokenArrow    TokenType = "ARROW"     // ->
	TokenDash     TokenType = "DASH"
	TokenAnd      TokenType = "AND"
	TokenOr       TokenType = "OR"
	TokenNot      TokenType = "NOT"
)

var keywords = map[string]TokenType{
	"AND": TokenAnd,
	"OR":  TokenOr,
	"NOT": TokenNot,
}

// Token is one lexeme. Pos and End are byte offsets into the query text;
// for quoted values Value is unescaped while End still covers the quotes.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "end of query"
	}
	return fmt.Sprintf("%s %q", t.Type, t.Value)
}
