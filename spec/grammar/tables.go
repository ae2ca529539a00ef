package grammar

import (
	"fmt"
	"sort"
)

type ActionKind int

const (
	ActionKindShift  = ActionKind(1)
	ActionKindReduce = ActionKind(2)
	ActionKindAccept = ActionKind(3)
)

func (k ActionKind) String() string {
	switch k {
	case ActionKindShift:
		return "shift"
	case ActionKindReduce:
		return "reduce"
	case ActionKindAccept:
		return "accept"
	}
	return "error"
}

type Assoc int

const (
	AssocNil      = Assoc(0)
	AssocLeft     = Assoc(1)
	AssocRight    = Assoc(2)
	AssocNonAssoc = Assoc(3)
)

// Action is an entry of an action cell. Arg is the destination state of a shift and the production
// number of a reduce. Prec and Assoc are kept for diagnostics.
type Action struct {
	Kind  ActionKind
	Arg   int
	Prec  int
	Assoc Assoc
}

func (a Action) String() string {
	switch a.Kind {
	case ActionKindShift:
		return fmt.Sprintf("s%v", a.Arg)
	case ActionKindReduce:
		return fmt.Sprintf("r%v", a.Arg)
	case ActionKindAccept:
		return "acc"
	}
	return "err"
}

// ActionTable maps (state, terminal) to a set of actions. An empty cell is an error entry.
type ActionTable struct {
	StateCount    int
	TerminalCount int
	Cells         [][]Action
}

func NewActionTable(stateCount, terminalCount int) *ActionTable {
	return &ActionTable{
		StateCount:    stateCount,
		TerminalCount: terminalCount,
		Cells:         make([][]Action, stateCount*terminalCount),
	}
}

func (t *ActionTable) Lookup(state, terminal int) []Action {
	if state < 0 || state >= t.StateCount || terminal < 0 || terminal >= t.TerminalCount {
		return nil
	}
	return t.Cells[state*t.TerminalCount+terminal]
}

func (t *ActionTable) Set(state, terminal int, acts []Action) {
	t.Cells[state*t.TerminalCount+terminal] = acts
}

// GoToTable maps (state, non-terminal) to a state.
type GoToTable struct {
	StateCount       int
	NonTerminalCount int

	// Entries hold a destination state, or -1 when the entry is empty.
	Entries []int
}

func NewGoToTable(stateCount, nonTerminalCount int) *GoToTable {
	entries := make([]int, stateCount*nonTerminalCount)
	for i := range entries {
		entries[i] = -1
	}
	return &GoToTable{
		StateCount:       stateCount,
		NonTerminalCount: nonTerminalCount,
		Entries:          entries,
	}
}

func (t *GoToTable) Lookup(state, nonTerminal int) (int, bool) {
	if state < 0 || state >= t.StateCount || nonTerminal < 0 || nonTerminal >= t.NonTerminalCount {
		return 0, false
	}
	next := t.Entries[state*t.NonTerminalCount+nonTerminal]
	return next, next >= 0
}

func (t *GoToTable) Set(state, nonTerminal, next int) {
	t.Entries[state*t.NonTerminalCount+nonTerminal] = next
}

// Rule is an entry of the rule table, indexed by production number.
type Rule struct {
	LHS      int
	RHSLen   int
	ActionID int
	Builtin  BuiltinKind
}

type RuleTable []Rule

// MergeWildcard matches any production in a merge entry.
const MergeWildcard = -1

type Merge struct {
	LHS         int
	ProductionA int
	ProductionB int
	ActionID    int
}

type MergeTable []Merge

// Lookup finds the merge action for two derivations of lhs. An entry naming the exact pair of
// productions, in either order, wins over a wildcard entry.
func (t MergeTable) Lookup(lhs, prodA, prodB int) (int, bool) {
	wildcard := 0
	for _, m := range t {
		if m.LHS != lhs {
			continue
		}
		if m.ProductionA == MergeWildcard && m.ProductionB == MergeWildcard {
			if wildcard == 0 {
				wildcard = m.ActionID
			}
			continue
		}
		if (m.ProductionA == prodA && m.ProductionB == prodB) || (m.ProductionA == prodB && m.ProductionB == prodA) {
			return m.ActionID, true
		}
	}
	return wildcard, wildcard != 0
}

// TerminalMapping maps the raw codes From through To to Terminal.
type TerminalMapping struct {
	From     int
	To       int
	Terminal int
}

// TerminalTable maps raw codes to terminals. Entries are sorted by From and never overlap.
type TerminalTable []TerminalMapping

func (t TerminalTable) Lookup(code int) (int, bool) {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].To >= code
	})
	if i < len(t) && t[i].From <= code {
		return t[i].Terminal, true
	}
	return 0, false
}

// ParsingTables is the decoded form of a TableBundle.
type ParsingTables struct {
	Action    *ActionTable
	GoTo      *GoToTable
	Rules     RuleTable
	Merges    MergeTable
	Terminals TerminalTable
}

// Reserved terminal numbers. User-defined terminals start at TerminalMin.
const (
	TerminalNil       = 0
	TerminalEOF       = 1
	TerminalScanError = 2
	TerminalException = 3
	TerminalMin       = 4
)
