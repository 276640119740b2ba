package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"NOT a AND (b OR c)", `AND(NOT("a"), OR("b", "c"))`},
		{"a OR b AND c", `OR("a", AND("b", "c"))`},
		{"a AND b AND c", `AND(AND("a", "b"), "c")`},
		{"NOT NOT a", `NOT(NOT("a"))`},
		{"(a OR b) AND -[:X]->", `AND(OR("a", "b"), -[:X]->)`},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			node, err := ParseString(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, node.String())
		})
	}
}

func TestParse_NotBindsTighterThanAnd(t *testing.T) {
	node, err := ParseString("NOT a AND (b OR c)")
	require.NoError(t, err)

	and, ok := node.(*And)
	require.True(t, ok)
	not, ok := and.Left.(*Not)
	require.True(t, ok)
	assert.Equal(t, &ClassMatch{Value: ptr("a")}, not.Operand)
	or, ok := and.Right.(*Or)
	require.True(t, ok)
	assert.Equal(t, &ClassMatch{Value: ptr("b")}, or.Left)
	assert.Equal(t, &ClassMatch{Value: ptr("c")}, or.Right)
}

func TestParse_ClassMatch(t *testing.T) {
	tests := []struct {
		input string
		want  *ClassMatch
	}{
		{"jdoe:", &ClassMatch{ID: "jdoe"}},
		{":Person", &ClassMatch{Class: "Person"}},
		{"jdoe:Person", &ClassMatch{ID: "jdoe", Class: "Person"}},
		{":Person.email", &ClassMatch{Class: "Person", Property: "email"}},
		{":Person.email: company", &ClassMatch{Class: "Person", Property: "email", Value: ptr("company")}},
		{":Person.email:company.com", &ClassMatch{Class: "Person", Property: "email", Value: ptr("company.com")}},
		{":Person.email: \"a b\"", &ClassMatch{Class: "Person", Property: "email", Value: ptr("a b")}},
		{":Person.manager:asmith:Person", &ClassMatch{Class: "Person", Property: "manager", Value: ptr("asmith:Person")}},
		{":Person.email: ", &ClassMatch{Class: "Person", Property: "email"}},
		{":.joined:2021-04", &ClassMatch{Property: "joined", Value: ptr("2021-04")}},
		{"jdoe: lead", &ClassMatch{ID: "jdoe", Value: ptr("lead")}},
		{`"odd id":Team`, &ClassMatch{ID: "odd id", Class: "Team"}},
		{"company.com", &ClassMatch{Value: ptr("company.com")}},
		{"team-zulu", &ClassMatch{Value: ptr("team-zulu")}},
		{"-5", &ClassMatch{Value: ptr("-5")}},
		{`"two words"`, &ClassMatch{Value: ptr("two words")}},
		{"(jdoe:)", &ClassMatch{ID: "jdoe"}},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			node, err := ParseString(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, node)
		})
	}
}

func TestParse_RelationMatch(t *testing.T) {
	tests := []struct {
		input string
		want  *RelationMatch
	}{
		{"-[:MEMBER_OF]->", &RelationMatch{Relation: "MEMBER_OF"}},
		{"-[MEMBER_OF]->", &RelationMatch{Relation: "MEMBER_OF"}},
		{"-[]->", &RelationMatch{}},
		{"(jdoe)-[]->", &RelationMatch{FromID: "jdoe"}},
		{"(:Person)-[]->:zulu", &RelationMatch{FromClass: "Person", Value: ptr("zulu")}},
		{"(jdoe:Person)-[:MEMBER_OF].role->: lead", &RelationMatch{
			FromID: "jdoe", FromClass: "Person", Relation: "MEMBER_OF", Qualifier: "role", Value: ptr("lead"),
		}},
		{"-[:KNOWS]->:team-zulu", &RelationMatch{Relation: "KNOWS", Value: ptr("team-zulu")}},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			node, err := ParseString(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, node)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
		pos     int
	}{
		{"", "empty query", 0},
		{"   ", "empty query", 3},
		{"a b", `unexpected WORD "b"`, 2},
		{"(a", "expected ')', got end of query", 2},
		{"-[:X]", "expected '->', got end of query", 5},
		{"-[:X", "expected ']', got end of query", 4},
		{`"abc`, "unterminated quoted value", 0},
		{"AND a", `unexpected AND "AND"`, 0},
		{":Person.", "expected property name, got end of query", 8},
		{"a OR", "unexpected end of query", 4},
		{")", `unexpected RPAREN ")"`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			_, err := ParseString(tc.input)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tc.message, se.Message)
			assert.Equal(t, tc.pos, se.Position)
		})
	}
}

func TestParse_EmptyStream(t *testing.T) {
	_, err := Parse(nil)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "empty query", se.Message)
	assert.EqualError(t, err, "query: empty query at position 0")
}
