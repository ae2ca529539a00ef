package driver

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nihei9/urchin/grammar"
	spec "github.com/nihei9/urchin/spec/grammar"
)

func compileGrammar(t *testing.T, def *grammar.Definition) *spec.CompiledGrammar {
	t.Helper()
	b := &grammar.GrammarBuilder{
		Def: def,
	}
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	cg, _, err := grammar.Compile(g)
	if err != nil {
		t.Fatal(err)
	}
	return cg
}

func parseText(t *testing.T, cg *spec.CompiledGrammar, src string, opts ...ParserOption) (*Result, error) {
	t.Helper()
	gram := NewGrammar(cg)
	s, err := NewRuneSource(gram, strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewParser(s, gram, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p.Parse()
}

// refRule is a rule of a grammar without ε-productions. An item quoted with single quotes is a
// character terminal, and any other item is a non-terminal.
type refRule struct {
	lhs  string
	alts [][]string
}

func refDefinition(rules []refRule) *grammar.Definition {
	def := &grammar.Definition{
		Name: "ref",
	}
	for _, r := range rules {
		var alts []grammar.Expr
		for _, alt := range r.alts {
			var items []grammar.Expr
			for _, item := range alt {
				if strings.HasPrefix(item, "'") {
					items = append(items, grammar.C([]rune(item)[1]))
					continue
				}
				items = append(items, grammar.N(item))
			}
			alts = append(alts, grammar.Seq(items...))
		}
		def.Rules = append(def.Rules, &grammar.Rule{
			LHS: r.lhs,
			RHS: grammar.Alt(alts...),
		})
	}
	return def
}

// refParser enumerates every derivation by trying all productions on all spans of the input.
type refParser struct {
	rules map[string][][]string
	input []rune
	memo  map[string][]string
	busy  map[string]bool
}

func newRefParser(rules []refRule, input string) *refParser {
	m := map[string][][]string{}
	for _, r := range rules {
		m[r.lhs] = append(m[r.lhs], r.alts...)
	}
	return &refParser{
		rules: m,
		input: []rune(input),
		memo:  map[string][]string{},
		busy:  map[string]bool{},
	}
}

func (p *refParser) parse(start string) []string {
	return p.derive(start, 0, len(p.input))
}

func (p *refParser) derive(item string, i, j int) []string {
	if strings.HasPrefix(item, "'") {
		if j == i+1 && p.input[i] == []rune(item)[1] {
			return []string{string(p.input[i])}
		}
		return nil
	}
	key := fmt.Sprintf("%v:%v:%v", item, i, j)
	if vs, ok := p.memo[key]; ok {
		return vs
	}
	if p.busy[key] {
		return nil
	}
	p.busy[key] = true
	var vs []string
	for _, alt := range p.rules[item] {
		for _, children := range p.seq(alt, i, j) {
			vs = append(vs, "("+item+" "+children+")")
		}
	}
	delete(p.busy, key)
	p.memo[key] = vs
	return vs
}

func (p *refParser) seq(items []string, i, j int) []string {
	if len(items) == 1 {
		return p.derive(items[0], i, j)
	}
	var vs []string
	for k := i + 1; k <= j-len(items)+1; k++ {
		for _, head := range p.derive(items[0], i, k) {
			for _, tail := range p.seq(items[1:], k, j) {
				vs = append(vs, head+" "+tail)
			}
		}
	}
	return vs
}

// sexpr prints a syntax tree in the notation of refParser.
func sexpr(n *Node) string {
	if n.Type != NodeTypeNonTerminal {
		return n.Text
	}
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(n.KindName)
	for _, c := range n.Children {
		b.WriteString(" ")
		b.WriteString(sexpr(c))
	}
	b.WriteString(")")
	return b.String()
}

func termNode(kind, text string) *Node {
	return &Node{
		Type:     NodeTypeTerminal,
		KindName: kind,
		Text:     text,
	}
}

func nonTermNode(kind string, children ...*Node) *Node {
	return &Node{
		Type:     NodeTypeNonTerminal,
		KindName: kind,
		Children: children,
	}
}
