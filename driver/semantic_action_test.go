package driver

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nihei9/urchin/grammar"
)

func calcGrammar() *grammar.Definition {
	return &grammar.Definition{
		Name: "calc",
		Terminals: []*grammar.TerminalDef{
			{Name: "digit", Chars: "0-9"},
		},
		Rules: []*grammar.Rule{
			{
				LHS: "expr",
				RHS: grammar.Alt(
					grammar.Seq(grammar.N("expr"), grammar.C('+'), grammar.N("term")),
					grammar.N("term"),
				),
				Action: "add",
			},
			{
				LHS: "term",
				RHS: grammar.Alt(
					grammar.Seq(grammar.N("term"), grammar.C('*'), grammar.N("num")),
					grammar.N("num"),
				),
				Action: "mul",
			},
			{
				LHS:    "num",
				RHS:    grammar.Plus(grammar.T("digit")),
				Action: "num",
			},
		},
	}
}

var calcActions = map[string]ActionFunc{
	"add": func(args []any) any {
		if len(args) == 1 {
			return args[0]
		}
		return args[0].(int) + args[2].(int)
	},
	"mul": func(args []any) any {
		if len(args) == 1 {
			return args[0]
		}
		return args[0].(int) * args[2].(int)
	},
	"num": func(args []any) any {
		var b strings.Builder
		for _, d := range args[0].(List) {
			b.WriteString(d.(string))
		}
		n, _ := strconv.Atoi(b.String())
		return n
	},
}

func TestDispatcher(t *testing.T) {
	cg := compileGrammar(t, calcGrammar())
	gram := NewGrammar(cg)

	t.Run("actions are called by name", func(t *testing.T) {
		d, err := NewDispatcher(gram, calcActions, nil)
		if err != nil {
			t.Fatal(err)
		}
		tests := []struct {
			src  string
			want int
		}{
			{src: "7", want: 7},
			{src: "1+2*3", want: 7},
			{src: "12*10+3*4*5", want: 180},
		}
		for _, tt := range tests {
			res, err := parseText(t, cg, tt.src, SemanticAction(d))
			if err != nil {
				t.Fatal(err)
			}
			v, err := res.Single()
			if err != nil {
				t.Fatal(err)
			}
			if v != tt.want {
				t.Fatalf("%v: want: %v, got: %v", tt.src, tt.want, v)
			}
		}
	})

	t.Run("a missing action is an error", func(t *testing.T) {
		_, err := NewDispatcher(gram, map[string]ActionFunc{
			"add": calcActions["add"],
		}, nil)
		if err == nil {
			t.Fatal("expected error didn't occur")
		}
		if !strings.Contains(err.Error(), "action mul") || !strings.Contains(err.Error(), "action num") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("a default action serves missing actions", func(t *testing.T) {
		d, err := NewDispatcher(gram, map[string]ActionFunc{
			"num": calcActions["num"],
		}, nil, DefaultAction(func(args []any) any {
			return len(args)
		}))
		if err != nil {
			t.Fatal(err)
		}
		res, err := parseText(t, cg, "1+2", SemanticAction(d))
		if err != nil {
			t.Fatal(err)
		}
		if v := res.First(); v != 3 {
			t.Fatalf("unexpected value: %v", v)
		}
	})

	t.Run("a shift function computes the values of terminals", func(t *testing.T) {
		d, err := NewDispatcher(gram, nil, nil,
			DefaultAction(func(args []any) any {
				return args
			}),
			ShiftWith(func(term *Terminal) any {
				return term.Offset
			}),
		)
		if err != nil {
			t.Fatal(err)
		}
		res, err := parseText(t, cg, "4", SemanticAction(d))
		if err != nil {
			t.Fatal(err)
		}
		want := []any{[]any{[]any{List{0}}}}
		if diff := cmp.Diff(want, res.First()); diff != "" {
			t.Fatalf("unexpected value (-want +got):\n%v", diff)
		}
	})
}

func TestPrintTree(t *testing.T) {
	cg := compileGrammar(t, calcGrammar())
	res, err := parseText(t, cg, "1+23")
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	PrintTree(&b, res.First().(*Node))
	want := `expr
├─ expr
│  └─ term
│     └─ num
│        └─ digit "1"
├─ '+' "+"
└─ term
   └─ num
      ├─ digit "2"
      └─ digit "3"
`
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Fatalf("unexpected tree (-want +got):\n%v", diff)
	}
}

func TestSyntaxTreeActionSet_Merge(t *testing.T) {
	a := NewSyntaxTreeActionSet(NewGrammar(compileGrammar(t, calcGrammar())))
	x := termNode("digit", "1")
	y := termNode("digit", "2")
	z := termNode("digit", "3")
	got := a.Merge(1, 2, a.Merge(1, 2, x, y), z)
	want := &Node{
		Type:     NodeTypeAmbiguity,
		KindName: AmbiguityKindName,
		Children: []*Node{x, y, z},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("nested ambiguities must be flattened (-want +got):\n%v", diff)
	}
}
