package driver

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nihei9/urchin/codec"
	"github.com/nihei9/urchin/grammar"
	spec "github.com/nihei9/urchin/spec/grammar"
)

var ignorePos = cmpopts.IgnoreFields(Node{}, "Row", "Col")

func sexprs(t *testing.T, res *Result) []string {
	t.Helper()
	var vs []string
	for _, v := range res.Values {
		n, ok := v.(*Node)
		if !ok {
			t.Fatalf("unexpected value: %T", v)
		}
		vs = append(vs, sexpr(n))
	}
	sort.Strings(vs)
	return vs
}

func TestParser_MatchesReferenceParser(t *testing.T) {
	tests := []struct {
		caption string
		rules   []refRule
		inputs  []string
	}{
		{
			caption: "arithmetic expressions",
			rules: []refRule{
				{lhs: "E", alts: [][]string{{"E", "'+'", "T"}, {"T"}}},
				{lhs: "T", alts: [][]string{{"T", "'*'", "F"}, {"F"}}},
				{lhs: "F", alts: [][]string{{"'('", "E", "')'"}, {"'n'"}}},
			},
			inputs: []string{
				"n",
				"n+n*n",
				"(n+n)*n",
				"n*n*n+n",
				"((n))",
			},
		},
		{
			caption: "an ambiguous expression grammar",
			rules: []refRule{
				{lhs: "E", alts: [][]string{{"E", "'+'", "E"}, {"'n'"}}},
			},
			inputs: []string{
				"n",
				"n+n",
				"n+n+n",
				"n+n+n+n",
			},
		},
		{
			caption: "a right-recursive list",
			rules: []refRule{
				{lhs: "L", alts: [][]string{{"'a'", "L"}, {"'a'"}}},
			},
			inputs: []string{
				"a",
				"aaaa",
			},
		},
		{
			caption: "an LR(2) grammar",
			rules: []refRule{
				{lhs: "S", alts: [][]string{{"A", "'x'", "'y'"}, {"B", "'x'", "'z'"}}},
				{lhs: "A", alts: [][]string{{"'a'"}}},
				{lhs: "B", alts: [][]string{{"'a'"}}},
			},
			inputs: []string{
				"axy",
				"axz",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			cg := compileGrammar(t, refDefinition(tt.rules))
			for _, input := range tt.inputs {
				want := newRefParser(tt.rules, input).parse(tt.rules[0].lhs)
				sort.Strings(want)
				res, err := parseText(t, cg, input)
				if err != nil {
					t.Fatalf("%v: %v", input, err)
				}
				if diff := cmp.Diff(want, sexprs(t, res)); diff != "" {
					t.Fatalf("%v: unexpected values (-want +got):\n%v", input, diff)
				}
			}
		})
	}
}

func TestParser_Ambiguity(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Seq(grammar.N("A"), grammar.C('+'), grammar.N("A"))},
			{LHS: "S", RHS: grammar.Seq(grammar.N("A"), grammar.N("A"))},
			{LHS: "A", RHS: grammar.Alt(grammar.C('x'), grammar.Seq(grammar.C('x'), grammar.C('x')))},
		},
	}
	cg := compileGrammar(t, def)

	tests := []struct {
		src  string
		want []string
	}{
		{
			src: "x+xx",
			want: []string{
				"(S (A x) + (A x x))",
			},
		},
		{
			src: "xxx",
			want: []string{
				"(S (A x x) (A x))",
				"(S (A x) (A x x))",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res, err := parseText(t, cg, tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, sexprs(t, res)); diff != "" {
				t.Fatalf("unexpected values (-want +got):\n%v", diff)
			}
			if len(tt.want) > 1 {
				if _, err := res.Single(); !errors.Is(err, ErrAmbiguous) {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func exprGrammar(merge bool) *grammar.Definition {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{
				LHS:    "E",
				RHS:    grammar.Seq(grammar.N("E"), grammar.C('+'), grammar.N("E")),
				Action: "add",
			},
			{
				LHS:    "E",
				RHS:    grammar.C('n'),
				Action: "num",
			},
		},
	}
	if merge {
		def.Merges = []*grammar.MergeDef{
			{Symbol: "E", Action: "union"},
		}
	}
	return def
}

// union merges sets of printed derivations.
func union(a, b any) any {
	set := map[string]struct{}{}
	for _, v := range []any{a, b} {
		for _, s := range v.([]string) {
			set[s] = struct{}{}
		}
	}
	var vs []string
	for s := range set {
		vs = append(vs, s)
	}
	sort.Strings(vs)
	return vs
}

func exprDispatcher(t *testing.T, cg *spec.CompiledGrammar, merge MergeFunc) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(NewGrammar(cg), map[string]ActionFunc{
		"add": func(args []any) any {
			var vs []string
			for _, l := range args[0].([]string) {
				for _, r := range args[2].([]string) {
					vs = append(vs, fmt.Sprintf("(%v+%v)", l, r))
				}
			}
			return vs
		},
		"num": func(args []any) any {
			return []string{args[0].(string)}
		},
	}, map[string]MergeFunc{
		"union": merge,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestParser_Merge(t *testing.T) {
	t.Run("without a merge action, every derivation is a value", func(t *testing.T) {
		res, err := parseText(t, compileGrammar(t, exprGrammar(false)), "n+n+n")
		if err != nil {
			t.Fatal(err)
		}
		want := []string{
			"(E (E (E n) + (E n)) + (E n))",
			"(E (E n) + (E (E n) + (E n)))",
		}
		if diff := cmp.Diff(want, sexprs(t, res)); diff != "" {
			t.Fatalf("unexpected values (-want +got):\n%v", diff)
		}
	})

	t.Run("a merge action builds one ambiguity node", func(t *testing.T) {
		res, err := parseText(t, compileGrammar(t, exprGrammar(true)), "n+n+n")
		if err != nil {
			t.Fatal(err)
		}
		v, err := res.Single()
		if err != nil {
			t.Fatal(err)
		}
		n := v.(*Node)
		if n.Type != NodeTypeAmbiguity || len(n.Children) != 2 {
			var b strings.Builder
			PrintTree(&b, n)
			t.Fatalf("unexpected tree:\n%v", b.String())
		}
	})

	t.Run("a commutative merge action gives the same value in any order", func(t *testing.T) {
		cg := compileGrammar(t, exprGrammar(true))
		src := "n+n+n+n"
		var results [][]string
		for _, merge := range []MergeFunc{
			union,
			func(a, b any) any {
				return union(b, a)
			},
		} {
			gram := NewGrammar(cg)
			s, err := NewRuneSource(gram, strings.NewReader(src))
			if err != nil {
				t.Fatal(err)
			}
			p, err := NewParser(s, gram, SemanticAction(exprDispatcher(t, cg, merge)))
			if err != nil {
				t.Fatal(err)
			}
			res, err := p.Parse()
			if err != nil {
				t.Fatal(err)
			}
			v, err := res.Single()
			if err != nil {
				t.Fatal(err)
			}
			results = append(results, v.([]string))
		}
		want := []string{
			"(((n+n)+n)+n)",
			"((n+(n+n))+n)",
			"((n+n)+(n+n))",
			"(n+((n+n)+n))",
			"(n+(n+(n+n)))",
		}
		for _, got := range results {
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("unexpected value (-want +got):\n%v", diff)
			}
		}
	})
}

func TestParser_Plus(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Plus(grammar.C('t')), Action: "list"},
		},
	}
	cg := compileGrammar(t, def)
	gram := NewGrammar(cg)
	d, err := NewDispatcher(gram, map[string]ActionFunc{
		"list": func(args []any) any {
			return args[0]
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewRuneSource(gram, strings.NewReader("ttttt"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewParser(s, gram, SemanticAction(d))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Parse()
	if err != nil {
		t.Fatal(err)
	}
	v, err := res.Single()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(List{"t", "t", "t", "t", "t"}, v); diff != "" {
		t.Fatalf("unexpected value (-want +got):\n%v", diff)
	}

	tabs, err := DecodeTables(gram, nil)
	if err != nil {
		t.Fatal(err)
	}
	appendProd := -1
	for prod, rule := range tabs.Rules {
		if rule.Builtin == spec.BuiltinListAppend {
			appendProd = prod
		}
	}
	if appendProd < 0 {
		t.Fatal("the list-append production was not found")
	}
	if n := res.Stats.ReductionsByRule[appendProd]; n != 4 {
		t.Fatalf("the recursive production must be reduced 4 times: %v", n)
	}
}

func TestParser_EmptyProductions(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Seq(grammar.Star(grammar.C('a')), grammar.Opt(grammar.C('b')), grammar.C('c'))},
		},
	}
	cg := compileGrammar(t, def)
	tests := []struct {
		src  string
		tree *Node
	}{
		{
			src: "c",
			tree: nonTermNode("S",
				termNode("'c'", "c"),
			),
		},
		{
			src: "aabc",
			tree: nonTermNode("S",
				termNode("'a'", "a"),
				termNode("'a'", "a"),
				termNode("'b'", "b"),
				termNode("'c'", "c"),
			),
		},
		{
			src: "ac",
			tree: nonTermNode("S",
				termNode("'a'", "a"),
				termNode("'c'", "c"),
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res, err := parseText(t, cg, tt.src)
			if err != nil {
				t.Fatal(err)
			}
			v, err := res.Single()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.tree, v, ignorePos); diff != "" {
				t.Fatalf("unexpected tree (-want +got):\n%v", diff)
			}
		})
	}
}

func TestParser_HiddenLeftRecursion(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Alt(grammar.Seq(grammar.N("B"), grammar.N("S"), grammar.C('a')), grammar.C('b'))},
			{LHS: "B", RHS: grammar.Seq()},
		},
	}
	cg := compileGrammar(t, def)
	res, err := parseText(t, cg, "baa")
	if err != nil {
		t.Fatal(err)
	}
	v, err := res.Single()
	if err != nil {
		t.Fatal(err)
	}
	want := nonTermNode("S",
		nonTermNode("B"),
		nonTermNode("S",
			nonTermNode("B"),
			nonTermNode("S",
				termNode("'b'", "b"),
			),
			termNode("'a'", "a"),
		),
		termNode("'a'", "a"),
	)
	if diff := cmp.Diff(want, v, ignorePos); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%v", diff)
	}
}

func TestParser_CyclicGrammar(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Alt(grammar.N("A"), grammar.C('a'))},
			{LHS: "A", RHS: grammar.N("S")},
		},
	}
	cg := compileGrammar(t, def)
	res, err := parseText(t, cg, "a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"(S a)"}, sexprs(t, res)); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%v", diff)
	}
}

func TestParser_ScanError(t *testing.T) {
	t.Run("without an error production, a scan error fails the parse", func(t *testing.T) {
		def := &grammar.Definition{
			Rules: []*grammar.Rule{
				{LHS: "S", RHS: grammar.Seq(grammar.C('a'), grammar.C('b'))},
			},
		}
		_, err := parseText(t, compileGrammar(t, def), "a?b")
		var pErr *ParseError
		if !errors.As(err, &pErr) {
			t.Fatalf("unexpected error: %v", err)
		}
		if pErr.Terminal.ID != spec.TerminalScanError || string(pErr.Terminal.Lexeme) != "?" {
			t.Fatalf("unexpected terminal: %+v", pErr.Terminal)
		}
		if pErr.Terminal.Col != 1 || len(pErr.States) == 0 {
			t.Fatalf("unexpected error: %+v", pErr)
		}
		if !errors.Is(pErr.Terminal.Err, ErrUnknownCode) {
			t.Fatalf("unexpected cause: %v", pErr.Terminal.Err)
		}
		if diff := cmp.Diff([]string{"'b'"}, pErr.ExpectedTerminals); diff != "" {
			t.Fatalf("unexpected expected terminals (-want +got):\n%v", diff)
		}
	})

	t.Run("an error production consumes a scan error", func(t *testing.T) {
		def := &grammar.Definition{
			Rules: []*grammar.Rule{
				{LHS: "S", RHS: grammar.Alt(
					grammar.Seq(grammar.C('a'), grammar.C('b')),
					grammar.Seq(grammar.C('a'), grammar.T("error"), grammar.C('b')),
				)},
			},
		}
		res, err := parseText(t, compileGrammar(t, def), "a\xffb")
		if err != nil {
			t.Fatal(err)
		}
		want := nonTermNode("S",
			termNode("'a'", "a"),
			&Node{
				Type:     NodeTypeError,
				KindName: "error",
				Text:     "\xff",
			},
			termNode("'b'", "b"),
		)
		if diff := cmp.Diff(want, res.First(), ignorePos); diff != "" {
			t.Fatalf("unexpected tree (-want +got):\n%v", diff)
		}
	})
}

func TestParser_UnexpectedEOF(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Seq(grammar.C('a'), grammar.C('b'))},
		},
	}
	_, err := parseText(t, compileGrammar(t, def), "a")
	var pErr *ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pErr.Terminal.EOF() {
		t.Fatalf("unexpected terminal: %+v", pErr.Terminal)
	}
	if !strings.Contains(pErr.Error(), "end of input") {
		t.Fatalf("unexpected message: %v", pErr)
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestParser_Exception(t *testing.T) {
	def := &grammar.Definition{
		Rules: []*grammar.Rule{
			{LHS: "S", RHS: grammar.Plus(grammar.C('a'))},
		},
	}
	cg := compileGrammar(t, def)
	cause := errors.New("device is not ready")
	for _, newSource := range []func(Grammar, io.Reader, ...SourceOption) (TerminalSource, error){NewRuneSource, NewByteSource} {
		gram := NewGrammar(cg)
		s, err := newSource(gram, &failingReader{
			data: []byte("aa"),
			err:  cause,
		})
		if err != nil {
			t.Fatal(err)
		}
		p, err := NewParser(s, gram)
		if err != nil {
			t.Fatal(err)
		}
		_, err = p.Parse()
		var exErr *ExceptionError
		if !errors.As(err, &exErr) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(err, cause) || err.Error() != cause.Error() {
			t.Fatalf("the original error must be preserved: %v", err)
		}
		if exErr.Col != 2 {
			t.Fatalf("unexpected position: %v", exErr.Col)
		}
	}
}

func TestParser_MaxValues(t *testing.T) {
	cg := compileGrammar(t, exprGrammar(false))
	res, err := parseText(t, cg, "n+n+n+n+n", MaxValues(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Values) != 3 || !res.Truncated {
		t.Fatalf("unexpected result: %v values, truncated: %v", len(res.Values), res.Truncated)
	}

	res, err = parseText(t, cg, "n+n+n+n+n")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Values) != 14 || res.Truncated {
		t.Fatalf("unexpected result: %v values, truncated: %v", len(res.Values), res.Truncated)
	}
	if res.Stats.Rounds != 10 || res.Stats.Shifts == 0 || res.Stats.Forks == 0 || res.Stats.Merges == 0 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}

	if _, err := NewParser(NewTerminalSlice(), NewGrammar(cg), MaxValues(0)); err == nil {
		t.Fatal("a non-positive bound must be rejected")
	}
}

func TestParser_CorruptTables(t *testing.T) {
	cg := compileGrammar(t, exprGrammar(true))
	tabs, err := DecodeTables(NewGrammar(cg), nil)
	if err != nil {
		t.Fatal(err)
	}

	shiftRuleActions := func(tables *spec.TableBundle) {
		rules := make(spec.RuleTable, len(tabs.Rules))
		copy(rules, tabs.Rules)
		for i := range rules {
			if rules[i].ActionID > 0 {
				rules[i].ActionID += 10
			}
		}
		chunks, err := codec.EncodeRuleTable(rules)
		if err != nil {
			t.Fatal(err)
		}
		tables.Rule = chunks
	}
	shiftMergeActions := func(tables *spec.TableBundle) {
		merges := make(spec.MergeTable, len(tabs.Merges))
		copy(merges, tabs.Merges)
		for i := range merges {
			merges[i].ActionID += 10
		}
		chunks, err := codec.EncodeMergeTable(merges)
		if err != nil {
			t.Fatal(err)
		}
		tables.Merge = chunks
	}

	tests := []struct {
		caption string
		modify  func(tables *spec.TableBundle)
		table   spec.TableKind
	}{
		{
			caption: "a broken chunk",
			modify: func(tables *spec.TableBundle) {
				tables.Action = []string{"!!!!"}
			},
			table: spec.TableKindAction,
		},
		{
			caption: "rules referring to unknown actions",
			modify:  shiftRuleActions,
			table:   spec.TableKindRule,
		},
		{
			caption: "merges referring to unknown merge actions",
			modify:  shiftMergeActions,
			table:   spec.TableKindMerge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			broken := *cg
			tables := *cg.Tables
			tt.modify(&tables)
			broken.Tables = &tables
			gram := NewGrammar(&broken)

			d, err := NewDispatcher(gram, map[string]ActionFunc{
				"add": func(args []any) any {
					return fmt.Sprintf("(%v+%v)", args[0], args[2])
				},
				"num": func(args []any) any {
					return "n"
				},
			}, map[string]MergeFunc{
				"union": func(a, b any) any {
					return fmt.Sprintf("%v|%v", a, b)
				},
			})
			if err != nil {
				t.Fatal(err)
			}
			src := NewTerminalSlice()
			p, err := NewParser(src, gram, SemanticAction(d))
			if err != nil {
				t.Fatal(err)
			}
			res, err := p.Parse()
			if err == nil {
				t.Fatal("corrupt tables must fail the parse")
			}
			if res != nil {
				t.Fatalf("corrupt tables must not yield values: %v", res.Values)
			}
			var cErr *codec.CorruptTableError
			if !errors.Is(err, codec.ErrCorruptTable) || !errors.As(err, &cErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			if cErr.Table != tt.table {
				t.Fatalf("unexpected table; want: %v, got: %v", tt.table, cErr.Table)
			}

			if _, err := NewRuneSource(gram, strings.NewReader("n+n+n")); !errors.Is(err, codec.ErrCorruptTable) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
