package driver

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/nihei9/urchin/grammar"
)

func TestGenGrammar(t *testing.T) {
	tests := []struct {
		caption string
		def     *grammar.Definition
		source  string
	}{
		{
			caption: "a rune grammar",
			def:     calcGrammar(),
			source:  "driver.NewRuneSource",
		},
		{
			caption: "a byte grammar",
			def: &grammar.Definition{
				Name:    "bytes",
				Scanner: grammar.ScannerByte,
				Rules: []*grammar.Rule{
					{LHS: "s", RHS: grammar.Plus(grammar.C('a'))},
				},
			},
			source: "driver.NewByteSource",
		},
		{
			caption: "a lexer grammar",
			def: &grammar.Definition{
				Name:    "list",
				Scanner: grammar.ScannerLexer,
				Terminals: []*grammar.TerminalDef{
					{Name: "num", Pattern: "[0-9]+"},
				},
				Rules: []*grammar.Rule{
					{LHS: "list", RHS: grammar.SepList(grammar.T("num"), grammar.C(','))},
				},
			},
			source: "driver.NewLexerSource",
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			cg := compileGrammar(t, tt.def)
			src, err := GenGrammar(cg, "gen")
			if err != nil {
				t.Fatal(err)
			}

			f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, 0)
			if err != nil {
				t.Fatalf("generated code is broken: %v\n%s", err, src)
			}
			if f.Name.Name != "gen" {
				t.Fatalf("unexpected package name: %v", f.Name.Name)
			}
			funcs := map[string]bool{}
			vars := map[string]bool{}
			for _, decl := range f.Decls {
				switch d := decl.(type) {
				case *ast.FuncDecl:
					if d.Recv == nil {
						funcs[d.Name.Name] = true
					}
				case *ast.GenDecl:
					for _, s := range d.Specs {
						if v, ok := s.(*ast.ValueSpec); ok {
							for _, n := range v.Names {
								vars[n.Name] = true
							}
						}
					}
				}
			}
			for _, fn := range []string{"NewGrammar", "NewSource"} {
				if !funcs[fn] {
					t.Fatalf("%v is missing:\n%s", fn, src)
				}
			}
			for _, v := range []string{"terminals", "nonTerminals", "actions", "mergeActions", "actionTable", "goToTable", "ruleTable", "mergeTable", "terminalTable"} {
				if !vars[v] {
					t.Fatalf("%v is missing:\n%s", v, src)
				}
			}
			if !strings.Contains(string(src), tt.source) {
				t.Fatalf("the terminal source must be created by %v:\n%s", tt.source, src)
			}
			if !strings.HasPrefix(string(src), "// Code generated by urchin. DO NOT EDIT.") {
				t.Fatalf("generated code must be marked:\n%s", src)
			}
		})
	}

	t.Run("an unknown scanner", func(t *testing.T) {
		cg := compileGrammar(t, calcGrammar())
		cg.Scanner = "unknown"
		if _, err := GenGrammar(cg, "gen"); err == nil {
			t.Fatalf("expected error didn't occur")
		}
	})
}
