package grammar

import (
	"sort"

	"github.com/nihei9/urchin/grammar/symbol"
)

// Analysis holds the nullability, FIRST, and FOLLOW sets of a grammar.
type Analysis struct {
	gram   *Grammar
	first  *firstSet
	follow *followSet
}

func Analyze(gram *Grammar) (*Analysis, error) {
	first, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, err
	}
	follow, err := genFollowSet(gram.productionSet, first, gram.augmentedStartSymbol)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		gram:   gram,
		first:  first,
		follow: follow,
	}, nil
}

// Nullable reports whether the symbol named name derives the empty string. Terminals and unknown
// names are never nullable.
func (a *Analysis) Nullable(name string) bool {
	sym, ok := a.gram.symbolTable.Reader().ToSymbol(name)
	if !ok || !sym.IsNonTerminal() {
		return false
	}
	e := a.first.findBySymbol(sym)
	return e != nil && e.empty
}

// First returns the names of the terminals that can begin a string derived from the symbol named
// name. The names are ordered by terminal number.
func (a *Analysis) First(name string) []string {
	r := a.gram.symbolTable.Reader()
	sym, ok := r.ToSymbol(name)
	if !ok {
		return nil
	}
	if sym.IsTerminal() {
		return []string{name}
	}
	e := a.first.findBySymbol(sym)
	if e == nil {
		return nil
	}
	return a.texts(e.sorted())
}

// Follow returns the names of the terminals that can follow the non-terminal named name, including
// <eof>. The names are ordered by terminal number.
func (a *Analysis) Follow(name string) []string {
	sym, ok := a.gram.symbolTable.Reader().ToSymbol(name)
	if !ok || !sym.IsNonTerminal() {
		return nil
	}
	e, err := a.follow.find(sym)
	if err != nil {
		return nil
	}
	syms := make([]symbol.Symbol, 0, len(e.symbols))
	for sym := range e.symbols {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i].Num() < syms[j].Num()
	})
	return a.texts(syms)
}

// NullableExpr reports whether e derives the empty string. Star and Opt are always nullable, Plus and
// SepList are nullable exactly when their item is.
func (a *Analysis) NullableExpr(e Expr) bool {
	switch x := e.(type) {
	case *TermRef, *CharRef:
		return false
	case *NonTermRef:
		return a.Nullable(x.Name)
	case *SeqExpr:
		for _, item := range x.Items {
			if !a.NullableExpr(item) {
				return false
			}
		}
		return true
	case *AltExpr:
		for _, alt := range x.Alts {
			if a.NullableExpr(alt) {
				return true
			}
		}
		return false
	case *StarExpr, *OptExpr:
		return true
	case *PlusExpr:
		return a.NullableExpr(x.Item)
	case *SepListExpr:
		return a.NullableExpr(x.Item)
	}
	return false
}

// FirstExpr returns the names of the terminals that can begin a string derived from e.
func (a *Analysis) FirstExpr(e Expr) []string {
	syms := map[symbol.Symbol]struct{}{}
	a.firstExpr(e, syms)
	sorted := make([]symbol.Symbol, 0, len(syms))
	for sym := range syms {
		sorted = append(sorted, sym)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Num() < sorted[j].Num()
	})
	return a.texts(sorted)
}

func (a *Analysis) firstExpr(e Expr, acc map[symbol.Symbol]struct{}) {
	r := a.gram.symbolTable.Reader()
	switch x := e.(type) {
	case *TermRef:
		if sym, ok := r.ToSymbol(x.Name); ok {
			acc[sym] = struct{}{}
		}
	case *CharRef:
		if sym, ok := r.ToSymbol(charTerminalName(x.Char)); ok {
			acc[sym] = struct{}{}
		}
	case *NonTermRef:
		sym, ok := r.ToSymbol(x.Name)
		if !ok {
			return
		}
		if f := a.first.findBySymbol(sym); f != nil {
			for s := range f.symbols {
				acc[s] = struct{}{}
			}
		}
	case *SeqExpr:
		for _, item := range x.Items {
			a.firstExpr(item, acc)
			if !a.NullableExpr(item) {
				return
			}
		}
	case *AltExpr:
		for _, alt := range x.Alts {
			a.firstExpr(alt, acc)
		}
	case *StarExpr:
		a.firstExpr(x.Item, acc)
	case *PlusExpr:
		a.firstExpr(x.Item, acc)
	case *OptExpr:
		a.firstExpr(x.Item, acc)
	case *SepListExpr:
		a.firstExpr(x.Item, acc)
		if a.NullableExpr(x.Item) {
			a.firstExpr(x.Sep, acc)
		}
	}
}

func (a *Analysis) texts(syms []symbol.Symbol) []string {
	r := a.gram.symbolTable.Reader()
	texts := make([]string, 0, len(syms))
	for _, sym := range syms {
		text, _ := r.ToText(sym)
		texts = append(texts, text)
	}
	return texts
}

// Equal reports whether two analyses hold the same sets.
func (a *Analysis) Equal(b *Analysis) bool {
	if len(a.first.set) != len(b.first.set) {
		return false
	}
	for sym, e := range a.first.set {
		f, ok := b.first.set[sym]
		if !ok || !e.equals(f) {
			return false
		}
	}
	if len(a.follow.set) != len(b.follow.set) {
		return false
	}
	for sym, e := range a.follow.set {
		f, ok := b.follow.set[sym]
		if !ok || len(e.symbols) != len(f.symbols) {
			return false
		}
		for s := range e.symbols {
			if _, ok := f.symbols[s]; !ok {
				return false
			}
		}
	}
	return true
}
