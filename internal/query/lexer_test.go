package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"empty", "", []TokenType{TokenEOF}},
		{"class match", "jdoe:Person.email:x", []TokenType{TokenWord, TokenColon, TokenWord, TokenDot, TokenWord, TokenColon, TokenWord, TokenEOF}},
		{"value separator", ":Person.email: x", []TokenType{TokenColon, TokenWord, TokenDot, TokenWord, TokenValueSep, TokenWord, TokenEOF}},
		{"relation", "(jdoe)-[:MEMBER_OF].role->", []TokenType{
			TokenLParen, TokenWord, TokenRParen, TokenRelStart, TokenColon, TokenWord,
			TokenRBracket, TokenDot, TokenWord, TokenArrow, TokenEOF,
		}},
		{"brackets", "[ ]", []TokenType{TokenLBracket, TokenRBracket, TokenEOF}},
		{"bare dash", "a - b", []TokenType{TokenWord, TokenDash, TokenWord, TokenEOF}},
		{"keywords are uppercase only", "AND and Or NOT", []TokenType{TokenAnd, TokenWord, TokenWord, TokenNot, TokenEOF}},
		{"quoted", `"a b" 'c'`, []TokenType{TokenQuoted, TokenQuoted, TokenEOF}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, types(Tokenize(tc.input)))
		})
	}
}

func TestTokenize_HyphenatedWord(t *testing.T) {
	toks := Tokenize("team-zulu")
	require.Len(t, toks, 2)
	assert.Equal(t, Token{Type: TokenWord, Value: "team-zulu", Pos: 0, End: 9}, toks[0])

	toks = Tokenize("a->b")
	assert.Equal(t, []TokenType{TokenWord, TokenArrow, TokenWord, TokenEOF}, types(toks))
}

func TestTokenize_Positions(t *testing.T) {
	toks := Tokenize("  ab  : c")
	require.Len(t, toks, 4)
	assert.Equal(t, 2, toks[0].Pos)
	assert.Equal(t, 4, toks[0].End)
	assert.Equal(t, TokenValueSep, toks[1].Type)
	assert.Equal(t, 6, toks[1].Pos)
	assert.Equal(t, 8, toks[2].Pos)
	assert.Equal(t, Token{Type: TokenEOF, Pos: 9, End: 9}, toks[3])
}

func TestTokenize_QuoteEscapes(t *testing.T) {
	toks := Tokenize(`'it\'s' "a\nb" "say \"hi\""`)
	require.Len(t, toks, 4)
	assert.Equal(t, "it's", toks[0].Value)
	assert.Equal(t, `a\nb`, toks[1].Value)
	assert.Equal(t, `say "hi"`, toks[2].Value)
	assert.Equal(t, 0, toks[0].Pos)
	assert.Equal(t, 7, toks[0].End)
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	toks := Tokenize(`x "abc`)
	require.Len(t, toks, 3)
	assert.Equal(t, TokenWord, toks[1].Type)
	assert.Equal(t, `"abc`, toks[1].Value)
}

func TestTokenize_TrailingColon(t *testing.T) {
	assert.Equal(t, []TokenType{TokenWord, TokenColon, TokenEOF}, types(Tokenize("jdoe:")))
}
