package query

import (
	"strconv"
	"strings"
)

// Node is a parsed query expression. The set of node kinds is closed:
// And, Or, Not, ClassMatch and RelationMatch.
type Node interface {
	String() string
	node()
}

// And matches when both operands match.
type And struct{ Left, Right Node }

// Or matches when either operand matches.
type Or struct{ Left, Right Node }

// Not inverts its operand.
type Not struct{ Operand Node }

// ClassMatch filters instances by id, class and property content. Empty
// fields do not filter; a nil Value only checks existence. A ClassMatch with
// nothing but a Value is a bare search term.
type ClassMatch struct {
	ID       string
	Class    string
	Property string
	Value    *string
}

// RelationMatch filters instances by their outgoing edges.
type RelationMatch struct {
	FromID    string
	FromClass string
	Relation  string
	Qualifier string
	Value     *string
}

func (*And) node()           {}
func (*Or) node()            {}
func (*Not) node()           {}
func (*ClassMatch) node()    {}
func (*RelationMatch) node() {}

func (n *And) String() string { return "AND(" + n.Left.String() + ", " + n.Right.String() + ")" }
func (n *Or) String() string  { return "OR(" + n.Left.String() + ", " + n.Right.String() + ")" }
func (n *Not) String() string { return "NOT(" + n.Operand.String() + ")" }

// Bare reports whether m is a plain search term.
func (m *ClassMatch) Bare() bool {
	return m.ID == "" && m.Class == "" && m.Property == "" && m.Value != nil
}

func (m *ClassMatch) String() string {
	if m.Bare() {
		return strconv.Quote(*m.Value)
	}
	var b strings.Builder
	b.WriteString(m.ID)
	b.WriteString(":")
	b.WriteString(m.Class)
	if m.Property != "" {
		b.WriteString("." + m.Property)
	}
	if m.Value != nil {
		b.WriteString(":" + strconv.Quote(*m.Value))
	}
	return b.String()
}

func (m *RelationMatch) String() string {
	var b strings.Builder
	if m.FromID != "" || m.FromClass != "" {
		b.WriteString("(" + m.FromID)
		if m.FromClass != "" {
			b.WriteString(":" + m.FromClass)
		}
		b.WriteString(")")
	}
	b.WriteString("-[")
	if m.Relation != "" {
		b.WriteString(":" + m.Relation)
	}
	b.WriteString("]")
	if m.Qualifier != "" {
		b.WriteString("." + m.Qualifier)
	}
	b.WriteString("->")
	if m.Value != nil {
		b.WriteString(":" + strconv.Quote(*m.Value))
	}
	return b.String()
}
