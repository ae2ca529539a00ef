package grammar

import (
	"fmt"
	"sort"
	"strings"

	verr "github.com/nihei9/urchin/error"
	"github.com/nihei9/urchin/grammar/symbol"
	spec "github.com/nihei9/urchin/spec/grammar"
	"github.com/sirupsen/logrus"
)

type ActionType string

const (
	ActionTypeShift  = ActionType("shift")
	ActionTypeReduce = ActionType("reduce")
	ActionTypeAccept = ActionType("accept")
	ActionTypeError  = ActionType("error")
)

type actionEntry struct {
	ty    ActionType
	state stateNum
	prod  productionNum
}

func newShiftActionEntry(state stateNum) actionEntry {
	return actionEntry{
		ty:    ActionTypeShift,
		state: state,
	}
}

func newReduceActionEntry(prod productionNum) actionEntry {
	return actionEntry{
		ty:   ActionTypeReduce,
		prod: prod,
	}
}

func newAcceptActionEntry() actionEntry {
	return actionEntry{
		ty: ActionTypeAccept,
	}
}

type GoToType string

const (
	GoToTypeRegistered = GoToType("registered")
	GoToTypeError      = GoToType("error")
)

type goToEntry uint

const goToEntryEmpty = goToEntry(0)

// newGoToEntry stores the state plus one so that the zero value stays empty.
func newGoToEntry(state stateNum) goToEntry {
	return goToEntry(state + 1)
}

func (e goToEntry) describe() (GoToType, stateNum) {
	if e == goToEntryEmpty {
		return GoToTypeError, stateNumInitial
	}
	return GoToTypeRegistered, stateNum(e - 1)
}

type conflict interface {
	conflict()
}

type shiftReduceConflict struct {
	state      stateNum
	sym        symbol.Symbol
	nextState  stateNum
	prodNum    productionNum
	resolvedBy spec.ConflictResolutionMethod

	// adopted is the action kept in the cell. ActionTypeError means both actions are kept.
	adopted ActionType
}

func (c *shiftReduceConflict) conflict() {
}

type reduceReduceConflict struct {
	state    stateNum
	sym      symbol.Symbol
	prodNum1 productionNum
	prodNum2 productionNum
}

func (c *reduceReduceConflict) conflict() {
}

var (
	_ conflict = &shiftReduceConflict{}
	_ conflict = &reduceReduceConflict{}
)

// ParsingTable is a GLR parsing table. A cell of the action table may hold more than one action.
// Shift/reduce conflicts the precedence can't resolve and all reduce/reduce conflicts remain in the
// cells, and the parser explores them at runtime.
type ParsingTable struct {
	actionTable      [][]actionEntry
	goToTable        []goToEntry
	stateCount       int
	terminalCount    int
	nonTerminalCount int

	InitialState stateNum
}

func (t *ParsingTable) getActions(state stateNum, sym symbol.SymbolNum) []actionEntry {
	pos := state.Int()*t.terminalCount + sym.Int()
	return t.actionTable[pos]
}

func (t *ParsingTable) getGoTo(state stateNum, sym symbol.SymbolNum) (GoToType, stateNum) {
	pos := state.Int()*t.nonTerminalCount + sym.Int()
	return t.goToTable[pos].describe()
}

func (t *ParsingTable) writeActions(row int, col int, acts []actionEntry) {
	t.actionTable[row*t.terminalCount+col] = acts
}

func (t *ParsingTable) writeGoTo(state stateNum, sym symbol.Symbol, nextState stateNum) {
	pos := state.Int()*t.nonTerminalCount + sym.Num().Int()
	t.goToTable[pos] = newGoToEntry(nextState)
}

type lrTableBuilder struct {
	automaton    *lr0Automaton
	prods        *productionSet
	termCount    int
	nonTermCount int
	symTab       *symbol.SymbolTableReader
	precAndAssoc *precAndAssoc
	logger       logrus.FieldLogger

	conflicts []conflict
	errs      verr.SpecErrors
}

func (b *lrTableBuilder) build() (*ParsingTable, error) {
	var ptab *ParsingTable
	{
		initialState := b.automaton.states[b.automaton.initialState]
		ptab = &ParsingTable{
			actionTable:      make([][]actionEntry, len(b.automaton.states)*b.termCount),
			goToTable:        make([]goToEntry, len(b.automaton.states)*b.nonTermCount),
			stateCount:       len(b.automaton.states),
			terminalCount:    b.termCount,
			nonTerminalCount: b.nonTermCount,
			InitialState:     initialState.num,
		}
	}

	termSyms := b.symTab.TerminalSymbols()
	for _, state := range b.automaton.states {
		shifts := map[symbol.Symbol]stateNum{}
		for sym, next := range state.next {
			if sym.IsTerminal() {
				shifts[sym] = next
			} else {
				ptab.writeGoTo(state.num, sym, next)
			}
		}

		reduces := map[symbol.Symbol][]productionNum{}
		accept := false
		for prodID := range state.reducible {
			reducibleProd, ok := b.prods.findByID(prodID)
			if !ok {
				return nil, fmt.Errorf("reducible production not found: %v", prodID)
			}

			// S' → S・ accepts at the end of input instead of reducing.
			if reducibleProd.num == productionNumStart {
				accept = true
				continue
			}

			reducibleItem := state.findItem(lrItemID{
				prod: reducibleProd.num,
				dot:  reducibleProd.rhsLen,
			})
			if reducibleItem == nil {
				reducibleItem = state.findEmptyProdItem(lrItemID{
					prod: reducibleProd.num,
					dot:  0,
				})
				if reducibleItem == nil {
					return nil, fmt.Errorf("reducible item not found; state: %v, production: %v", state.num, reducibleProd.num)
				}
			}

			for a := range reducibleItem.lookAhead.symbols {
				reduces[a] = append(reduces[a], reducibleProd.num)
			}
		}

		for _, sym := range termSyms {
			next, shiftable := shifts[sym]
			prods := reduces[sym]
			acceptable := accept && sym == symbol.SymbolEOF
			if !shiftable && len(prods) == 0 && !acceptable {
				continue
			}
			if shiftable && acceptable {
				return nil, fmt.Errorf("%w; state: %v", semErrShiftAcceptConflict, state.num)
			}
			sort.Slice(prods, func(i, j int) bool {
				return prods[i] < prods[j]
			})

			acts := b.resolveCell(state.num, sym, shiftable, next, prods)
			if acceptable {
				acts = append(acts, newAcceptActionEntry())
			}
			ptab.writeActions(state.num.Int(), sym.Num().Int(), acts)
		}
	}

	if len(b.errs) > 0 {
		return nil, b.errs
	}

	return ptab, nil
}

// resolveCell applies precedence and associativity to a cell. Actions the precedence can't order stay
// in the cell; the returned actions are ordered as shift first, then reduces by production number.
func (b *lrTableBuilder) resolveCell(state stateNum, sym symbol.Symbol, shiftable bool, next stateNum, prods []productionNum) []actionEntry {
	keepShift := shiftable
	var keptProds []productionNum
	for _, prod := range prods {
		if !shiftable {
			keptProds = append(keptProds, prod)
			continue
		}

		act, method := b.resolveSRConflict(sym.Num(), prod)
		c := &shiftReduceConflict{
			state:      state,
			sym:        sym,
			nextState:  next,
			prodNum:    prod,
			resolvedBy: method,
			adopted:    act,
		}
		b.conflicts = append(b.conflicts, c)

		switch act {
		case ActionTypeShift:
			b.logger.WithFields(logrus.Fields{
				"state":      state.Int(),
				"terminal":   b.symbolText(sym),
				"production": prod.Int(),
				"method":     method,
			}).Debug("shift/reduce conflict resolved in favor of shift")
		case ActionTypeReduce:
			keepShift = false
			keptProds = append(keptProds, prod)
			b.logger.WithFields(logrus.Fields{
				"state":      state.Int(),
				"terminal":   b.symbolText(sym),
				"production": prod.Int(),
				"method":     method,
			}).Debug("shift/reduce conflict resolved in favor of reduce")
		case ActionTypeError:
			if method != spec.ResolvedByUnresolved {
				p, _ := b.prods.findByNum(prod)
				var pos Pos
				if p != nil {
					pos = p.pos
				}
				b.errs = append(b.errs, &verr.SpecError{
					Cause:  semErrNonAssocConflict,
					Detail: fmt.Sprintf("state %v, terminal %v, production %v", state, b.symbolText(sym), prod),
					Row:    pos.Row,
					Col:    pos.Col,
				})
				continue
			}
			keptProds = append(keptProds, prod)
			b.logger.WithFields(logrus.Fields{
				"state":      state.Int(),
				"terminal":   b.symbolText(sym),
				"production": prod.Int(),
			}).Warn("shift/reduce conflict left to the parser")
		}
	}

	for i, p1 := range keptProds {
		for _, p2 := range keptProds[i+1:] {
			b.conflicts = append(b.conflicts, &reduceReduceConflict{
				state:    state,
				sym:      sym,
				prodNum1: p1,
				prodNum2: p2,
			})
			b.logger.WithFields(logrus.Fields{
				"state":        state.Int(),
				"terminal":     b.symbolText(sym),
				"production_1": p1.Int(),
				"production_2": p2.Int(),
			}).Warn("reduce/reduce conflict left to the parser")
		}
	}

	var acts []actionEntry
	if keepShift {
		acts = append(acts, newShiftActionEntry(next))
	}
	for _, prod := range keptProds {
		acts = append(acts, newReduceActionEntry(prod))
	}
	return acts
}

// resolveSRConflict decides between a shift of sym and a reduce of prod. ActionTypeError means the
// conflict can't be resolved: either precedence is missing (ResolvedByUnresolved) or both are
// non-associative with equal precedence (ResolvedByAssoc), which is a grammar error.
func (b *lrTableBuilder) resolveSRConflict(sym symbol.SymbolNum, prod productionNum) (ActionType, spec.ConflictResolutionMethod) {
	symPrec := b.precAndAssoc.terminalPrecedence(sym)
	prodPrec := b.precAndAssoc.productionPredence(prod)
	if symPrec == precNil || prodPrec == precNil {
		return ActionTypeError, spec.ResolvedByUnresolved
	}
	if symPrec == prodPrec {
		switch b.precAndAssoc.productionAssociativity(prod) {
		case AssocLeft:
			return ActionTypeReduce, spec.ResolvedByAssoc
		case AssocRight:
			return ActionTypeShift, spec.ResolvedByAssoc
		default:
			return ActionTypeError, spec.ResolvedByAssoc
		}
	}
	if symPrec < prodPrec {
		return ActionTypeReduce, spec.ResolvedByPrec
	}
	return ActionTypeShift, spec.ResolvedByPrec
}

func (b *lrTableBuilder) symbolText(sym symbol.Symbol) string {
	text, ok := b.symTab.ToText(sym)
	if !ok {
		return sym.String()
	}
	return text
}

func assocToReport(assoc Assoc) string {
	switch assoc {
	case AssocLeft:
		return "l"
	case AssocRight:
		return "r"
	case AssocNonAssoc:
		return "n"
	}
	return ""
}

func (b *lrTableBuilder) genReport(tab *ParsingTable, gram *Grammar) (*spec.Report, error) {
	var terms []*spec.Terminal
	{
		termSyms := b.symTab.TerminalSymbols()
		terms = make([]*spec.Terminal, len(termSyms)+1)

		for _, sym := range termSyms {
			name, ok := b.symTab.ToText(sym)
			if !ok {
				return nil, fmt.Errorf("failed to generate terminals: symbol not found: %v", sym)
			}

			term := &spec.Terminal{
				Number: sym.Num().Int(),
				Name:   name,
			}
			if _, ok := gram.anonTerms[sym]; ok {
				term.Anonymous = true
			}
			if pat, ok := gram.term2Pat[sym]; ok {
				term.Pattern = pat
			}
			if ranges, ok := gram.term2Codes[sym]; ok {
				var b strings.Builder
				for i, r := range ranges {
					if i > 0 {
						b.WriteString(" ")
					}
					if r.from == r.to {
						fmt.Fprintf(&b, "%U", r.from)
					} else {
						fmt.Fprintf(&b, "%U-%U", r.from, r.to)
					}
				}
				term.Codes = b.String()
			}

			prec := b.precAndAssoc.terminalPrecedence(sym.Num())
			if prec != precNil {
				term.Precedence = prec
			}
			term.Associativity = assocToReport(b.precAndAssoc.terminalAssociativity(sym.Num()))

			terms[sym.Num()] = term
		}
	}

	var nonTerms []*spec.NonTerminal
	{
		nonTermSyms := b.symTab.NonTerminalSymbols()
		nonTerms = make([]*spec.NonTerminal, len(nonTermSyms)+1)
		for _, sym := range nonTermSyms {
			name, ok := b.symTab.ToText(sym)
			if !ok {
				return nil, fmt.Errorf("failed to generate non-terminals: symbol not found: %v", sym)
			}

			_, aux := gram.auxSymbols[sym]
			nonTerms[sym.Num()] = &spec.NonTerminal{
				Number:    sym.Num().Int(),
				Name:      name,
				Auxiliary: aux,
			}
		}
	}

	var prods []*spec.Production
	{
		ps := gram.productionSet.getAllProductions()
		prods = make([]*spec.Production, gram.productionSet.count())
		for _, p := range ps {
			rhs := make([]int, len(p.rhs))
			for i, e := range p.rhs {
				if e.IsTerminal() {
					rhs[i] = e.Num().Int()
				} else {
					rhs[i] = e.Num().Int() * -1
				}
			}

			prod := &spec.Production{
				Number: p.num.Int(),
				LHS:    p.lhs.Num().Int(),
				RHS:    rhs,
			}
			if p.actionID > 0 {
				prod.Action = gram.actions[p.actionID]
			}
			if p.builtin != spec.BuiltinNone {
				prod.Builtin = p.builtin.String()
			}

			prec := b.precAndAssoc.productionPredence(p.num)
			if prec != precNil {
				prod.Precedence = prec
			}
			prod.Associativity = assocToReport(b.precAndAssoc.productionAssociativity(p.num))

			prods[p.num.Int()] = prod
		}
	}

	var states []*spec.State
	{
		srConflicts := map[stateNum][]*shiftReduceConflict{}
		rrConflicts := map[stateNum][]*reduceReduceConflict{}
		for _, con := range b.conflicts {
			switch c := con.(type) {
			case *shiftReduceConflict:
				srConflicts[c.state] = append(srConflicts[c.state], c)
			case *reduceReduceConflict:
				rrConflicts[c.state] = append(rrConflicts[c.state], c)
			}
		}

		states = make([]*spec.State, len(b.automaton.states))
		for _, s := range b.automaton.states {
			kernel := make([]*spec.Item, len(s.items))
			for i, item := range s.items {
				kernel[i] = &spec.Item{
					Production: item.id.prod.Int(),
					Dot:        item.dot,
				}
			}

			var shift []*spec.Transition
			var reduce []*spec.Reduce
			var goTo []*spec.Transition
			accept := false
			{
				for _, t := range b.symTab.TerminalSymbols() {
					for _, act := range tab.getActions(s.num, t.Num()) {
						switch act.ty {
						case ActionTypeShift:
							shift = append(shift, &spec.Transition{
								Symbol: t.Num().Int(),
								State:  act.state.Int(),
							})
						case ActionTypeReduce:
							found := false
							for _, r := range reduce {
								if r.Production == act.prod.Int() {
									r.LookAhead = append(r.LookAhead, t.Num().Int())
									found = true
									break
								}
							}
							if !found {
								reduce = append(reduce, &spec.Reduce{
									LookAhead:  []int{t.Num().Int()},
									Production: act.prod.Int(),
								})
							}
						case ActionTypeAccept:
							accept = true
						}
					}
				}

				for _, n := range b.symTab.NonTerminalSymbols() {
					ty, next := tab.getGoTo(s.num, n.Num())
					if ty == GoToTypeRegistered {
						goTo = append(goTo, &spec.Transition{
							Symbol: n.Num().Int(),
							State:  next.Int(),
						})
					}
				}

				sort.Slice(shift, func(i, j int) bool {
					return shift[i].State < shift[j].State
				})
				sort.Slice(reduce, func(i, j int) bool {
					return reduce[i].Production < reduce[j].Production
				})
				sort.Slice(goTo, func(i, j int) bool {
					return goTo[i].State < goTo[j].State
				})
			}

			sr := []*spec.SRConflict{}
			rr := []*spec.RRConflict{}
			{
				for _, c := range srConflicts[s.num] {
					conflict := &spec.SRConflict{
						Symbol:     c.sym.Num().Int(),
						State:      c.nextState.Int(),
						Production: c.prodNum.Int(),
						ResolvedBy: c.resolvedBy,
					}
					switch c.adopted {
					case ActionTypeShift:
						n := c.nextState.Int()
						conflict.AdoptedState = &n
					case ActionTypeReduce:
						n := c.prodNum.Int()
						conflict.AdoptedProduction = &n
					}

					sr = append(sr, conflict)
				}

				sort.SliceStable(sr, func(i, j int) bool {
					return sr[i].Symbol < sr[j].Symbol
				})

				for _, c := range rrConflicts[s.num] {
					rr = append(rr, &spec.RRConflict{
						Symbol:      c.sym.Num().Int(),
						Production1: c.prodNum1.Int(),
						Production2: c.prodNum2.Int(),
					})
				}

				sort.SliceStable(rr, func(i, j int) bool {
					return rr[i].Symbol < rr[j].Symbol
				})
			}

			states[s.num.Int()] = &spec.State{
				Number:     s.num.Int(),
				Kernel:     kernel,
				Shift:      shift,
				Reduce:     reduce,
				GoTo:       goTo,
				Accept:     accept,
				SRConflict: sr,
				RRConflict: rr,
			}
		}
	}

	return &spec.Report{
		Terminals:    terms,
		NonTerminals: nonTerms,
		Productions:  prods,
		States:       states,
	}, nil
}
