package symbol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymbol(t *testing.T) {
	tab := NewSymbolTable()
	w := tab.Writer()
	_, _ = w.RegisterStartSymbol("expr'")
	_, _ = w.RegisterNonTerminalSymbol("expr")
	_, _ = w.RegisterNonTerminalSymbol("term")
	_, _ = w.RegisterNonTerminalSymbol("factor")
	_, _ = w.RegisterTerminalSymbol("id")
	_, _ = w.RegisterTerminalSymbol("add")
	_, _ = w.RegisterTerminalSymbol("mul")
	_, _ = w.RegisterTerminalSymbol("l_paren")
	_, _ = w.RegisterTerminalSymbol("r_paren")

	nonTermTexts := []string{
		"", // Nil
		"expr'",
		"expr",
		"term",
		"factor",
	}

	termTexts := []string{
		"", // Nil
		SymbolNameEOF,
		SymbolNameScanError,
		SymbolNameException,
		"id",
		"add",
		"mul",
		"l_paren",
		"r_paren",
	}

	tests := []struct {
		text          string
		isNil         bool
		isStart       bool
		isReserved    bool
		isNonTerminal bool
		isTerminal    bool
	}{
		{
			text:          "expr'",
			isStart:       true,
			isNonTerminal: true,
		},
		{
			text:          "expr",
			isNonTerminal: true,
		},
		{
			text:          "term",
			isNonTerminal: true,
		},
		{
			text:          "factor",
			isNonTerminal: true,
		},
		{
			text:       "id",
			isTerminal: true,
		},
		{
			text:       "add",
			isTerminal: true,
		},
		{
			text:       "mul",
			isTerminal: true,
		},
		{
			text:       "l_paren",
			isTerminal: true,
		},
		{
			text:       "r_paren",
			isTerminal: true,
		},
		{
			text:       SymbolNameEOF,
			isReserved: true,
			isTerminal: true,
		},
		{
			text:       SymbolNameScanError,
			isReserved: true,
			isTerminal: true,
		},
		{
			text:       SymbolNameException,
			isReserved: true,
			isTerminal: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := tab.Reader()
			sym, ok := r.ToSymbol(tt.text)
			if !ok {
				t.Fatalf("symbol was not found")
			}
			testSymbolProperty(t, sym, tt.isNil, tt.isStart, tt.isReserved, tt.isNonTerminal, tt.isTerminal)
			text, ok := r.ToText(sym)
			if !ok {
				t.Fatalf("text was not found")
			}
			if text != tt.text {
				t.Fatalf("unexpected text representation; want: %v, got: %v", tt.text, text)
			}
		})
	}

	t.Run("sentinel numbers", func(t *testing.T) {
		if n := SymbolEOF.Num(); n != 1 {
			t.Fatalf("unexpected EOF number; want: 1, got: %v", n)
		}
		if n := SymbolScanError.Num(); n != 2 {
			t.Fatalf("unexpected scan error number; want: 2, got: %v", n)
		}
		if n := SymbolException.Num(); n != 3 {
			t.Fatalf("unexpected exception number; want: 3, got: %v", n)
		}
	})

	t.Run("Nil", func(t *testing.T) {
		testSymbolProperty(t, SymbolNil, true, false, false, false, false)
	})

	t.Run("texts of non-terminals", func(t *testing.T) {
		r := tab.Reader()
		ts, err := r.NonTerminalTexts()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(nonTermTexts, ts); diff != "" {
			t.Fatalf("unexpected non-terminal texts (-want +got):\n%s", diff)
		}
		if c := r.NonTerminalCount(); c != len(nonTermTexts) {
			t.Fatalf("unexpected non-terminal count; want: %v, got: %v", len(nonTermTexts), c)
		}
	})

	t.Run("texts of terminals", func(t *testing.T) {
		r := tab.Reader()
		ts := r.TerminalTexts()
		if diff := cmp.Diff(termTexts, ts); diff != "" {
			t.Fatalf("unexpected terminal texts (-want +got):\n%s", diff)
		}
		if c := r.TerminalCount(); c != len(termTexts) {
			t.Fatalf("unexpected terminal count; want: %v, got: %v", len(termTexts), c)
		}
	})

	t.Run("kind clash", func(t *testing.T) {
		if _, err := w.RegisterTerminalSymbol("expr"); err == nil {
			t.Fatal("registering a non-terminal name as a terminal must fail")
		}
		if _, err := w.RegisterNonTerminalSymbol("id"); err == nil {
			t.Fatal("registering a terminal name as a non-terminal must fail")
		}
	})
}

func TestSymbolTable_NoStartSymbol(t *testing.T) {
	tab := NewSymbolTable()
	_, err := tab.Reader().NonTerminalTexts()
	if err == nil {
		t.Fatal("a table without a start symbol must be rejected")
	}
}

func testSymbolProperty(t *testing.T, sym Symbol, isNil, isStart, isReserved, isNonTerminal, isTerminal bool) {
	t.Helper()

	if v := sym.IsNil(); v != isNil {
		t.Fatalf("isNil property is mismatched; want: %v, got: %v", isNil, v)
	}
	if v := sym.IsStart(); v != isStart {
		t.Fatalf("isStart property is mismatched; want: %v, got: %v", isStart, v)
	}
	if v := sym.IsReserved(); v != isReserved {
		t.Fatalf("isReserved property is mismatched; want: %v, got: %v", isReserved, v)
	}
	if v := sym.IsNonTerminal(); v != isNonTerminal {
		t.Fatalf("isNonTerminal property is mismatched; want: %v, got: %v", isNonTerminal, v)
	}
	if v := sym.IsTerminal(); v != isTerminal {
		t.Fatalf("isTerminal property is mismatched; want: %v, got: %v", isTerminal, v)
	}
}
