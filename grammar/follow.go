package grammar

import (
	"fmt"

	"github.com/nihei9/urchin/grammar/symbol"
)

type followEntry struct {
	symbols map[symbol.Symbol]struct{}
}

func newFollowEntry() *followEntry {
	return &followEntry{
		symbols: map[symbol.Symbol]struct{}{},
	}
}

func (e *followEntry) add(sym symbol.Symbol) bool {
	if _, ok := e.symbols[sym]; ok {
		return false
	}
	e.symbols[sym] = struct{}{}
	return true
}

func (e *followEntry) merge(syms map[symbol.Symbol]struct{}) bool {
	changed := false
	for sym := range syms {
		if e.add(sym) {
			changed = true
		}
	}
	return changed
}

// followSet holds FOLLOW of every non-terminal. EOF is an ordinary member of an entry.
type followSet struct {
	set map[symbol.Symbol]*followEntry
}

func (flw *followSet) find(sym symbol.Symbol) (*followEntry, error) {
	e, ok := flw.set[sym]
	if !ok {
		return nil, fmt.Errorf("an entry of FOLLOW was not found; symbol: %s", sym)
	}
	return e, nil
}

func genFollowSet(prods *productionSet, first *firstSet, augStartSym symbol.Symbol) (*followSet, error) {
	flw := &followSet{
		set: map[symbol.Symbol]*followEntry{},
	}
	for _, prod := range prods.getAllProductions() {
		if _, ok := flw.set[prod.lhs]; ok {
			continue
		}
		flw.set[prod.lhs] = newFollowEntry()
	}
	aug, err := flw.find(augStartSym)
	if err != nil {
		return nil, err
	}
	aug.add(symbol.SymbolEOF)

	for {
		more := false
		for _, prod := range prods.getAllProductions() {
			for i, sym := range prod.rhs {
				if !sym.IsNonTerminal() {
					continue
				}
				e, err := flw.find(sym)
				if err != nil {
					return nil, err
				}
				fst, err := first.find(prod, i+1)
				if err != nil {
					return nil, err
				}
				if e.merge(fst.symbols) {
					more = true
				}
				if !fst.empty {
					continue
				}
				lhs, err := flw.find(prod.lhs)
				if err != nil {
					return nil, err
				}
				if e.merge(lhs.symbols) {
					more = true
				}
			}
		}
		if !more {
			break
		}
	}

	return flw, nil
}
