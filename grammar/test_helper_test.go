package grammar

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/nihei9/urchin/grammar/symbol"
)

func buildGrammar(t *testing.T, def *Definition) *Grammar {
	t.Helper()

	b := GrammarBuilder{
		Def: def,
	}
	gram, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build a grammar: %v", err)
	}
	return gram
}

func genSym(t *testing.T, gram *Grammar, text string) symbol.Symbol {
	t.Helper()

	sym, ok := gram.symbolTable.Reader().ToSymbol(text)
	if !ok {
		t.Fatalf("symbol was not found: %v", text)
	}
	return sym
}

// itemText formats an item like `expr → expr ・ '+' term`.
func itemText(t *testing.T, gram *Grammar, item *lrItem) string {
	t.Helper()

	prod, ok := gram.productionSet.findByID(item.prod)
	if !ok {
		t.Fatalf("production was not found: %v", item.id)
	}
	r := gram.symbolTable.Reader()
	lhs, _ := r.ToText(prod.lhs)
	elems := []string{lhs, "→"}
	for i, sym := range prod.rhs {
		if i == item.dot {
			elems = append(elems, "・")
		}
		text, _ := r.ToText(sym)
		elems = append(elems, text)
	}
	if item.dot == prod.rhsLen {
		elems = append(elems, "・")
	}
	return strings.Join(elems, " ")
}

func kernelText(t *testing.T, gram *Grammar, state *lrState) string {
	t.Helper()

	var items []string
	for _, item := range state.items {
		items = append(items, itemText(t, gram, item))
	}
	sort.Strings(items)
	return strings.Join(items, "; ")
}

// kernelTexts returns the kernels of an automaton as sorted item texts joined by `; `.
func kernelTexts(t *testing.T, gram *Grammar, automaton *lr0Automaton) []string {
	t.Helper()

	var kernels []string
	for _, state := range automaton.states {
		kernels = append(kernels, kernelText(t, gram, state))
	}
	sort.Strings(kernels)
	return kernels
}

// lookAheads returns the look-ahead symbols of every reducible item keyed by
// `<kernel text> | <item text>`.
func lookAheads(t *testing.T, gram *Grammar, automaton *lr0Automaton) map[string][]string {
	t.Helper()

	r := gram.symbolTable.Reader()
	m := map[string][]string{}
	for _, state := range automaton.states {
		items := append([]*lrItem{}, state.items...)
		items = append(items, state.emptyProdItems...)
		for _, item := range items {
			if !item.reducible {
				continue
			}
			var syms []symbol.Symbol
			for sym := range item.lookAhead.symbols {
				syms = append(syms, sym)
			}
			sort.Slice(syms, func(i, j int) bool {
				return syms[i].Num() < syms[j].Num()
			})
			var texts []string
			for _, sym := range syms {
				text, _ := r.ToText(sym)
				texts = append(texts, text)
			}
			m[fmt.Sprintf("%v | %v", kernelText(t, gram, state), itemText(t, gram, item))] = texts
		}
	}
	return m
}

// exprDef is the expression grammar of the dragon book.
func exprDef() *Definition {
	return &Definition{
		Name: "expr",
		Terminals: []*TerminalDef{
			{Name: "add", Chars: "+"},
			{Name: "mul", Chars: "*"},
			{Name: "l_paren", Chars: "("},
			{Name: "r_paren", Chars: ")"},
			{Name: "id", Chars: "a-z"},
		},
		Rules: []*Rule{
			{LHS: "expr", RHS: Alt(Seq(N("expr"), T("add"), N("term")), N("term"))},
			{LHS: "term", RHS: Alt(Seq(N("term"), T("mul"), N("factor")), N("factor"))},
			{LHS: "factor", RHS: Alt(Seq(T("l_paren"), N("expr"), T("r_paren")), T("id"))},
		},
	}
}

// assignDef is a grammar that is LALR(1) but not SLR(1).
func assignDef() *Definition {
	return &Definition{
		Name: "assign",
		Terminals: []*TerminalDef{
			{Name: "id", Chars: "a-z"},
		},
		Rules: []*Rule{
			{LHS: "s", RHS: Alt(Seq(N("l"), C('='), N("r")), N("r"))},
			{LHS: "l", RHS: Alt(Seq(C('*'), N("r")), T("id"))},
			{LHS: "r", RHS: N("l")},
		},
	}
}

// nullableDef is a grammar containing empty productions.
func nullableDef() *Definition {
	return &Definition{
		Name: "nullable",
		Terminals: []*TerminalDef{
			{Name: "foo", Chars: "f"},
			{Name: "bar", Chars: "b"},
			{Name: "baz", Chars: "z"},
		},
		Rules: []*Rule{
			{LHS: "s", RHS: Seq(N("a"), N("b"), N("c"))},
			{LHS: "a", RHS: Alt(T("foo"), Seq())},
			{LHS: "b", RHS: Alt(T("bar"), Seq())},
			{LHS: "c", RHS: T("baz")},
		},
	}
}
