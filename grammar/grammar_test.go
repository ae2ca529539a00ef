package grammar

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	verr "github.com/nihei9/urchin/error"
	spec "github.com/nihei9/urchin/spec/grammar"
)

// prodTexts formats productions like `s@1 → s@1 foo <list-append>`.
func prodTexts(gram *Grammar) []string {
	r := gram.symbolTable.Reader()
	var texts []string
	for _, p := range gram.productionSet.getAllProductions() {
		var b strings.Builder
		lhs, _ := r.ToText(p.lhs)
		fmt.Fprintf(&b, "%v →", lhs)
		if len(p.rhs) == 0 {
			fmt.Fprintf(&b, " ε")
		}
		for _, sym := range p.rhs {
			text, _ := r.ToText(sym)
			fmt.Fprintf(&b, " %v", text)
		}
		if p.builtin != spec.BuiltinNone {
			fmt.Fprintf(&b, " <%v>", p.builtin)
		}
		texts = append(texts, b.String())
	}
	return texts
}

func TestGrammarBuilder_Desugar(t *testing.T) {
	terms := func() []*TerminalDef {
		return []*TerminalDef{
			{Name: "foo", Chars: "f"},
			{Name: "bar", Chars: "b"},
			{Name: "baz", Chars: "z"},
		}
	}

	tests := []struct {
		caption string
		rhs     Expr
		prods   []string
	}{
		{
			caption: "top-level alternatives become productions of the LHS",
			rhs:     Alt(T("foo"), Seq(T("bar"), T("baz"))),
			prods: []string{
				"s' → s",
				"s → foo",
				"s → bar baz",
			},
		},
		{
			caption: "zero or more",
			rhs:     Seq(Star(T("foo")), T("bar")),
			prods: []string{
				"s' → s",
				"s@1 → ε <list-empty>",
				"s@1 → s@1 foo <list-append>",
				"s → s@1 bar",
			},
		},
		{
			caption: "one or more",
			rhs:     Plus(T("foo")),
			prods: []string{
				"s' → s",
				"s@1 → foo <list-single>",
				"s@1 → s@1 foo <list-append>",
				"s → s@1",
			},
		},
		{
			caption: "separated list",
			rhs:     SepList(T("foo"), C(',')),
			prods: []string{
				"s' → s",
				"s@1 → foo <list-single>",
				"s@1 → s@1 ',' foo <list-append-skip-sep>",
				"s → s@1",
			},
		},
		{
			caption: "optional item",
			rhs:     Seq(Opt(T("foo")), T("bar")),
			prods: []string{
				"s' → s",
				"s@1 → ε <optional-none>",
				"s@1 → foo <pass-through>",
				"s → s@1 bar",
			},
		},
		{
			caption: "nested alternatives",
			rhs:     Seq(Alt(Seq(T("foo"), T("bar")), T("baz")), T("baz")),
			prods: []string{
				"s' → s",
				"s@1 → foo bar <tuple>",
				"s@1 → baz <pass-through>",
				"s → s@1 baz",
			},
		},
		{
			caption: "equal constructs share an auxiliary non-terminal",
			rhs:     Seq(Star(T("foo")), T("bar"), Star(T("foo"))),
			prods: []string{
				"s' → s",
				"s@1 → ε <list-empty>",
				"s@1 → s@1 foo <list-append>",
				"s → s@1 bar s@1",
			},
		},
		{
			caption: "an iteration of a group",
			rhs:     Star(Seq(T("foo"), T("bar"))),
			prods: []string{
				"s' → s",
				"s@1 → foo bar <tuple>",
				"s@2 → ε <list-empty>",
				"s@2 → s@2 s@1 <list-append>",
				"s → s@2",
			},
		},
		{
			caption: "the scan error terminal can appear in productions",
			rhs:     Alt(T("foo"), T("error")),
			prods: []string{
				"s' → s",
				"s → foo",
				"s → error",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			gram := buildGrammar(t, &Definition{
				Name:      "test",
				Terminals: terms(),
				Rules: []*Rule{
					{LHS: "s", RHS: tt.rhs},
				},
			})
			if diff := cmp.Diff(tt.prods, prodTexts(gram)); diff != "" {
				t.Fatalf("unexpected productions (-want +got):\n%v", diff)
			}
		})
	}
}

func TestGrammarBuilder_Precedence(t *testing.T) {
	gram := buildGrammar(t, &Definition{
		Name: "test",
		Terminals: []*TerminalDef{
			{Name: "num", Chars: "0-9"},
		},
		Precedence: []*PrecLevel{
			{Assoc: AssocLeft, Terminals: []string{"'+'", "'-'"}},
			{Assoc: AssocRight, Terminals: []string{"'^'"}},
		},
		Rules: []*Rule{
			{LHS: "expr", RHS: Seq(N("expr"), C('+'), N("expr"))},
			{LHS: "expr", RHS: Seq(N("expr"), C('^'), N("expr"))},
			{LHS: "expr", RHS: Seq(C('-'), N("expr")), Prec: "'^'"},
			{LHS: "expr", RHS: T("num")},
		},
	})

	pa := gram.precAndAssoc
	tests := []struct {
		prod  string
		prec  int
		assoc Assoc
	}{
		{prod: "expr → expr '+' expr", prec: 1, assoc: AssocLeft},
		{prod: "expr → expr '^' expr", prec: 2, assoc: AssocRight},
		{prod: "expr → '-' expr", prec: 2, assoc: AssocRight},
		{prod: "expr → num", prec: precNil, assoc: AssocNil},
	}
	texts := prodTexts(gram)
	for _, tt := range tests {
		num := -1
		for i, text := range texts {
			if text == tt.prod {
				num = gram.productionSet.getAllProductions()[i].num.Int()
			}
		}
		if num < 0 {
			t.Fatalf("production was not found: %v", tt.prod)
		}
		if prec := pa.productionPredence(productionNum(num)); prec != tt.prec {
			t.Errorf("%v: unexpected precedence; want: %v, got: %v", tt.prod, tt.prec, prec)
		}
		if assoc := pa.productionAssociativity(productionNum(num)); assoc != tt.assoc {
			t.Errorf("%v: unexpected associativity; want: %v, got: %v", tt.prod, tt.assoc, assoc)
		}
	}

	plus := genSym(t, gram, "'+'")
	if prec := pa.terminalPrecedence(plus.Num()); prec != 1 {
		t.Errorf("unexpected precedence of '+': %v", prec)
	}
}

func TestGrammarBuilder_Error(t *testing.T) {
	runeTerms := func() []*TerminalDef {
		return []*TerminalDef{
			{Name: "foo", Chars: "f"},
			{Name: "bar", Chars: "b"},
		}
	}
	lexTerms := func() []*TerminalDef {
		return []*TerminalDef{
			{Name: "foo", Literal: "foo"},
			{Name: "bar", Pattern: "ba[rz]"},
			{Name: "ws", Pattern: "[ \\t]+", Skip: true},
		}
	}

	tests := []struct {
		caption string
		def     *Definition
		causes  []error
	}{
		{
			caption: "a grammar without rules",
			def:     &Definition{},
			causes:  []error{semErrNoProduction},
		},
		{
			caption: "an unknown scanner",
			def: &Definition{
				Scanner: "regex",
				Rules:   []*Rule{{LHS: "s", RHS: C('a')}},
			},
			causes: []error{semErrInvalidScanner},
		},
		{
			caption: "a terminal named <eof>",
			def: &Definition{
				Terminals: []*TerminalDef{{Name: "<eof>", Chars: "x"}},
				Rules:     []*Rule{{LHS: "s", RHS: C('a')}},
			},
			causes: []error{semErrReservedSymbol},
		},
		{
			caption: "a terminal named error",
			def: &Definition{
				Terminals: []*TerminalDef{{Name: "error", Chars: "x"}},
				Rules:     []*Rule{{LHS: "s", RHS: C('a')}},
			},
			causes: []error{semErrReservedSymbol},
		},
		{
			caption: "duplicate terminals",
			def: &Definition{
				Terminals: append(runeTerms(), &TerminalDef{Name: "foo", Chars: "g"}),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrDuplicateTerminal},
		},
		{
			caption: "a non-terminal having the same name as a terminal",
			def: &Definition{
				Terminals: runeTerms(),
				Rules: []*Rule{
					{LHS: "s", RHS: T("foo")},
					{LHS: "foo", RHS: T("bar")},
				},
			},
			causes: []error{semErrDuplicateName},
		},
		{
			caption: "a non-terminal name containing @",
			def: &Definition{
				Terminals: runeTerms(),
				Rules: []*Rule{
					{LHS: "s", RHS: N("s@1")},
					{LHS: "s@1", RHS: T("bar")},
				},
			},
			causes: []error{semErrReservedSymbol},
		},
		{
			caption: "a start symbol without rules",
			def: &Definition{
				Start:     "x",
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrNoStartRule},
		},
		{
			caption: "an undefined terminal",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("baz")}},
			},
			causes: []error{semErrUndefinedSym},
		},
		{
			caption: "an undefined non-terminal",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: Seq(T("foo"), N("t"))}},
			},
			causes: []error{semErrUndefinedSym},
		},
		{
			caption: "a production referring to <eof>",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: Seq(T("foo"), T("<eof>"))}},
			},
			causes: []error{semErrReservedSymbolRef},
		},
		{
			caption: "duplicate productions",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: Alt(T("foo"), T("foo"))}},
			},
			causes: []error{semErrDuplicateProduction},
		},
		{
			caption: "an unreachable rule",
			def: &Definition{
				Terminals: runeTerms(),
				Rules: []*Rule{
					{LHS: "s", RHS: T("foo")},
					{LHS: "t", RHS: T("bar")},
				},
			},
			causes: []error{semErrUnusedProduction},
		},
		{
			caption: "a rule without RHS",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s"}},
			},
			causes: []error{semErrEmptyRHS},
		},
		{
			caption: "%prec naming an undefined terminal",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo"), Prec: "baz"}},
			},
			causes: []error{semErrUndefinedPrecSym},
		},
		{
			caption: "an invalid associativity",
			def: &Definition{
				Terminals:  runeTerms(),
				Precedence: []*PrecLevel{{Assoc: "up", Terminals: []string{"foo"}}},
				Rules:      []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrInvalidAssoc},
		},
		{
			caption: "a terminal in two precedence levels",
			def: &Definition{
				Terminals: runeTerms(),
				Precedence: []*PrecLevel{
					{Assoc: AssocLeft, Terminals: []string{"foo"}},
					{Assoc: AssocRight, Terminals: []string{"foo"}},
				},
				Rules: []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrDuplicateAssoc},
		},
		{
			caption: "a precedence level naming an undefined terminal",
			def: &Definition{
				Terminals:  runeTerms(),
				Precedence: []*PrecLevel{{Assoc: AssocLeft, Terminals: []string{"baz"}}},
				Rules:      []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrUndefinedSym},
		},
		{
			caption: "a merge definition of an undefined symbol",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
				Merges:    []*MergeDef{{Symbol: "t", Action: "pick"}},
			},
			causes: []error{semErrUndefinedSym},
		},
		{
			caption: "a merge definition without action",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
				Merges:    []*MergeDef{{Symbol: "s"}},
			},
			causes: []error{semErrNoMergeAction},
		},
		{
			caption: "a merge definition with one rule label",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo"), Label: "a"}},
				Merges:    []*MergeDef{{Symbol: "s", Rules: []string{"a"}, Action: "pick"}},
			},
			causes: []error{semErrInvalidMergeRules},
		},
		{
			caption: "a merge definition with undefined rule labels",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
				Merges:    []*MergeDef{{Symbol: "s", Rules: []string{"a", "b"}, Action: "pick"}},
			},
			causes: []error{semErrUndefinedLabel, semErrUndefinedLabel},
		},
		{
			caption: "duplicate merge definitions",
			def: &Definition{
				Terminals: runeTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
				Merges: []*MergeDef{
					{Symbol: "s", Action: "pick"},
					{Symbol: "s", Action: "first"},
				},
			},
			causes: []error{semErrDuplicateMerge},
		},
		{
			caption: "a pattern in a rune grammar",
			def: &Definition{
				Terminals: []*TerminalDef{{Name: "foo", Pattern: "foo"}},
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrInvalidTerminalDef},
		},
		{
			caption: "an invalid character class",
			def: &Definition{
				Terminals: []*TerminalDef{{Name: "foo", Chars: "z-a"}},
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrInvalidCharClass},
		},
		{
			caption: "terminals matching the same code",
			def: &Definition{
				Terminals: []*TerminalDef{
					{Name: "foo", Chars: "a-z"},
					{Name: "bar", Chars: "b"},
				},
				Rules: []*Rule{{LHS: "s", RHS: Seq(T("foo"), T("bar"))}},
			},
			causes: []error{semErrCodeConflict},
		},
		{
			caption: "a character literal out of the byte range",
			def: &Definition{
				Scanner: ScannerByte,
				Rules:   []*Rule{{LHS: "s", RHS: C('あ')}},
			},
			causes: []error{semErrCodeOutOfRange},
		},
		{
			caption: "a character class out of the byte range",
			def: &Definition{
				Scanner:   ScannerByte,
				Terminals: []*TerminalDef{{Name: "foo", Chars: "あ"}},
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrCodeOutOfRange},
		},
		{
			caption: "a skipped terminal used in productions",
			def: &Definition{
				Scanner:   ScannerLexer,
				Terminals: lexTerms(),
				Rules:     []*Rule{{LHS: "s", RHS: Seq(T("foo"), T("ws"))}},
			},
			causes: []error{semErrTermCannotBeSkipped},
		},
		{
			caption: "a lexer terminal with both a pattern and a literal",
			def: &Definition{
				Scanner:   ScannerLexer,
				Terminals: []*TerminalDef{{Name: "foo", Pattern: "fo+", Literal: "foo"}},
				Rules:     []*Rule{{LHS: "s", RHS: T("foo")}},
			},
			causes: []error{semErrInvalidTerminalDef},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			b := GrammarBuilder{
				Def: tt.def,
			}
			gram, err := b.Build()
			if err == nil {
				t.Fatalf("expected error didn't occur")
			}
			if gram != nil {
				t.Fatalf("a grammar must not be returned with errors")
			}
			var specErrs verr.SpecErrors
			if !errors.As(err, &specErrs) {
				t.Fatalf("unexpected error type: %T: %v", err, err)
			}
			var causes []error
			for _, e := range specErrs {
				causes = append(causes, e.Cause)
			}
			if len(causes) != len(tt.causes) {
				t.Fatalf("unexpected errors; want: %v, got: %v", tt.causes, err)
			}
			for i, cause := range tt.causes {
				if causes[i] != cause {
					t.Errorf("unexpected error #%v; want: %v, got: %v", i, cause, causes[i])
				}
			}
		})
	}
}

func TestParseCharClass(t *testing.T) {
	tests := []struct {
		src    string
		ranges []codeRange
		err    bool
	}{
		{src: "a", ranges: []codeRange{{from: 'a', to: 'a'}}},
		{src: "0-9a-fA-F", ranges: []codeRange{{from: '0', to: '9'}, {from: 'A', to: 'F'}, {from: 'a', to: 'f'}}},
		{src: "a-cb-d", ranges: []codeRange{{from: 'a', to: 'd'}}},
		{src: `\-a`, ranges: []codeRange{{from: '-', to: '-'}, {from: 'a', to: 'a'}}},
		{src: `\n\t\x41`, ranges: []codeRange{{from: '\t', to: '\n'}, {from: 'A', to: 'A'}}},
		{src: "", err: true},
		{src: "z-a", err: true},
		{src: `\`, err: true},
		{src: `\xZZ`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ranges, err := parseCharClass(tt.src)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error didn't occur")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.ranges, ranges, cmp.AllowUnexported(codeRange{})); diff != "" {
				t.Fatalf("unexpected ranges (-want +got):\n%v", diff)
			}
		})
	}
}
