package grammar

import (
	"fmt"
	"sort"

	"github.com/nihei9/urchin/grammar/symbol"
)

type lr0Automaton struct {
	initialState stateNum

	// states are numbered in breadth-first order from the initial state.
	states  []*lrState
	kernels map[kernelID][]stateNum
}

func (a *lr0Automaton) findState(k *kernel) (*lrState, bool) {
	for _, num := range a.kernels[k.id] {
		if state := a.states[num]; state.kernel.equals(k) {
			return state, true
		}
	}
	return nil, false
}

func (a *lr0Automaton) addState(k *kernel) *lrState {
	state := &lrState{
		kernel: k,
		num:    stateNum(len(a.states)),
	}
	a.states = append(a.states, state)
	a.kernels[k.id] = append(a.kernels[k.id], state.num)
	return state
}

// genLR0Automaton builds the LR(0) automaton. When maxStates is positive, the construction stops with
// an error as soon as the automaton has more states than that.
func genLR0Automaton(prods *productionSet, startSym symbol.Symbol, maxStates int) (*lr0Automaton, error) {
	if !startSym.IsStart() {
		return nil, fmt.Errorf("passed symbold is not a start symbol")
	}

	automaton := &lr0Automaton{
		initialState: stateNumInitial,
		kernels:      map[kernelID][]stateNum{},
	}

	var uncheckedStates []*lrState

	// Generate an initial kernel.
	{
		prods, _ := prods.findByLHS(startSym)
		initialItem, err := newLR0Item(prods[0], 0)
		if err != nil {
			return nil, err
		}

		k, err := newKernel([]*lrItem{initialItem})
		if err != nil {
			return nil, err
		}

		uncheckedStates = append(uncheckedStates, automaton.addState(k))
	}

	for len(uncheckedStates) > 0 {
		state := uncheckedStates[0]
		uncheckedStates = uncheckedStates[1:]

		neighbours, err := genStateAndNeighbourKernels(state, prods)
		if err != nil {
			return nil, err
		}

		for _, n := range neighbours {
			if known, ok := automaton.findState(n.kernel); ok {
				state.next[n.symbol] = known.num
				continue
			}
			next := automaton.addState(n.kernel)
			if maxStates > 0 && len(automaton.states) > maxStates {
				return nil, fmt.Errorf("%w: %v", semErrTooManyStates, maxStates)
			}
			state.next[n.symbol] = next.num
			uncheckedStates = append(uncheckedStates, next)
		}
	}

	return automaton, nil
}

// genStateAndNeighbourKernels fills the transitions and the reducible items of the state and returns
// the kernels of its neighbours.
func genStateAndNeighbourKernels(state *lrState, prods *productionSet) ([]*neighbourKernel, error) {
	items, err := genLR0Closure(state.kernel, prods)
	if err != nil {
		return nil, err
	}
	neighbours, err := genNeighbourKernels(items, prods)
	if err != nil {
		return nil, err
	}

	reducible := map[productionID]struct{}{}
	var emptyProdItems []*lrItem
	for _, item := range items {
		if !item.reducible {
			continue
		}

		reducible[item.prod] = struct{}{}

		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("reducible production not found: %v", item.prod)
		}
		if prod.isEmpty() {
			emptyProdItems = append(emptyProdItems, item)
		}
	}

	state.next = map[symbol.Symbol]stateNum{}
	state.reducible = reducible
	state.emptyProdItems = emptyProdItems

	return neighbours, nil
}

func genLR0Closure(k *kernel, prods *productionSet) ([]*lrItem, error) {
	items := []*lrItem{}
	knownItems := map[lrItemID]struct{}{}
	uncheckedItems := []*lrItem{}
	for _, item := range k.items {
		items = append(items, item)
		uncheckedItems = append(uncheckedItems, item)
	}
	for len(uncheckedItems) > 0 {
		nextUncheckedItems := []*lrItem{}
		for _, item := range uncheckedItems {
			if !item.dottedSymbol.IsNonTerminal() {
				continue
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, prod := range ps {
				item, err := newLR0Item(prod, 0)
				if err != nil {
					return nil, err
				}
				if _, exist := knownItems[item.id]; exist {
					continue
				}
				items = append(items, item)
				knownItems[item.id] = struct{}{}
				nextUncheckedItems = append(nextUncheckedItems, item)
			}
		}
		uncheckedItems = nextUncheckedItems
	}

	return items, nil
}

type neighbourKernel struct {
	symbol symbol.Symbol
	kernel *kernel
}

func genNeighbourKernels(items []*lrItem, prods *productionSet) ([]*neighbourKernel, error) {
	kItemMap := map[symbol.Symbol][]*lrItem{}
	for _, item := range items {
		if item.dottedSymbol.IsNil() {
			continue
		}
		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("a production was not found: %v", item.prod)
		}
		kItem, err := newLR0Item(prod, item.dot+1)
		if err != nil {
			return nil, err
		}
		kItemMap[item.dottedSymbol] = append(kItemMap[item.dottedSymbol], kItem)
	}

	nextSyms := []symbol.Symbol{}
	for sym := range kItemMap {
		nextSyms = append(nextSyms, sym)
	}
	sort.Slice(nextSyms, func(i, j int) bool {
		return nextSyms[i] < nextSyms[j]
	})

	kernels := []*neighbourKernel{}
	for _, sym := range nextSyms {
		k, err := newKernel(kItemMap[sym])
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, &neighbourKernel{
			symbol: sym,
			kernel: k,
		})
	}

	return kernels, nil
}
