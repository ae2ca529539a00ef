package grammar

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos is a position in a grammar description. Zero values mean the position is unknown.
type Pos struct {
	Row int
	Col int
}

// Expr is a right-hand-side expression. The set of variants is closed: *TermRef, *NonTermRef,
// *CharRef, *SeqExpr, *AltExpr, *StarExpr, *PlusExpr, *SepListExpr, and *OptExpr.
type Expr interface {
	Position() Pos
	String() string
	expr()
}

type exprBase struct {
	pos Pos
}

func (b exprBase) Position() Pos {
	return b.pos
}

func (exprBase) expr() {}

// TermRef refers to a named terminal.
type TermRef struct {
	exprBase
	Name string
}

// NonTermRef refers to a non-terminal.
type NonTermRef struct {
	exprBase
	Name string
}

// CharRef is a character literal such as 'x'. In rune and byte grammars the character is its own raw
// code, and in lexer grammars it becomes a literal pattern.
type CharRef struct {
	exprBase
	Char rune
}

type SeqExpr struct {
	exprBase
	Items []Expr
}

type AltExpr struct {
	exprBase
	Alts []Expr
}

type StarExpr struct {
	exprBase
	Item Expr
}

type PlusExpr struct {
	exprBase
	Item Expr
}

type SepListExpr struct {
	exprBase
	Item Expr
	Sep  Expr
}

type OptExpr struct {
	exprBase
	Item Expr
}

func T(name string) *TermRef {
	return &TermRef{Name: name}
}

func N(name string) *NonTermRef {
	return &NonTermRef{Name: name}
}

func C(c rune) *CharRef {
	return &CharRef{Char: c}
}

// Seq returns a sequence. Seq() is the empty sequence.
func Seq(items ...Expr) *SeqExpr {
	return &SeqExpr{Items: items}
}

func Alt(alts ...Expr) *AltExpr {
	return &AltExpr{Alts: alts}
}

func Star(item Expr) *StarExpr {
	return &StarExpr{Item: item}
}

func Plus(item Expr) *PlusExpr {
	return &PlusExpr{Item: item}
}

// SepList matches one or more items separated by sep.
func SepList(item, sep Expr) *SepListExpr {
	return &SepListExpr{Item: item, Sep: sep}
}

func Opt(item Expr) *OptExpr {
	return &OptExpr{Item: item}
}

// At sets the source position of an expression and returns it.
func At[E Expr](e E, row, col int) E {
	switch x := any(e).(type) {
	case *TermRef:
		x.pos = Pos{Row: row, Col: col}
	case *NonTermRef:
		x.pos = Pos{Row: row, Col: col}
	case *CharRef:
		x.pos = Pos{Row: row, Col: col}
	case *SeqExpr:
		x.pos = Pos{Row: row, Col: col}
	case *AltExpr:
		x.pos = Pos{Row: row, Col: col}
	case *StarExpr:
		x.pos = Pos{Row: row, Col: col}
	case *PlusExpr:
		x.pos = Pos{Row: row, Col: col}
	case *SepListExpr:
		x.pos = Pos{Row: row, Col: col}
	case *OptExpr:
		x.pos = Pos{Row: row, Col: col}
	}
	return e
}

func (e *TermRef) String() string {
	return e.Name
}

func (e *NonTermRef) String() string {
	return e.Name
}

func (e *CharRef) String() string {
	return charTerminalName(e.Char)
}

func (e *SeqExpr) String() string {
	if len(e.Items) == 0 {
		return "ε"
	}
	return joinExprs(e.Items, " ")
}

func (e *AltExpr) String() string {
	return "(" + joinExprs(e.Alts, " | ") + ")"
}

func (e *StarExpr) String() string {
	return groupExpr(e.Item) + "*"
}

func (e *PlusExpr) String() string {
	return groupExpr(e.Item) + "+"
}

func (e *SepListExpr) String() string {
	return fmt.Sprintf("%v%%%v", groupExpr(e.Item), groupExpr(e.Sep))
}

func (e *OptExpr) String() string {
	return groupExpr(e.Item) + "?"
}

func joinExprs(es []Expr, sep string) string {
	var b strings.Builder
	for i, e := range es {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(e.String())
	}
	return b.String()
}

func groupExpr(e Expr) string {
	if s, ok := e.(*SeqExpr); ok && len(s.Items) != 1 {
		return "(" + s.String() + ")"
	}
	return e.String()
}

// charTerminalName returns the terminal name of a character literal, e.g. '+'.
func charTerminalName(c rune) string {
	q := strconv.QuoteRune(c)
	return "'" + q[1:len(q)-1] + "'"
}

// walkExpr visits e in pre-order. Children are skipped when f returns false.
func walkExpr(e Expr, f func(Expr) bool) {
	if !f(e) {
		return
	}
	switch x := e.(type) {
	case *SeqExpr:
		for _, i := range x.Items {
			walkExpr(i, f)
		}
	case *AltExpr:
		for _, a := range x.Alts {
			walkExpr(a, f)
		}
	case *StarExpr:
		walkExpr(x.Item, f)
	case *PlusExpr:
		walkExpr(x.Item, f)
	case *SepListExpr:
		walkExpr(x.Item, f)
		walkExpr(x.Sep, f)
	case *OptExpr:
		walkExpr(x.Item, f)
	}
}
