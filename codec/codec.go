// Package codec turns parsing tables into printable chunks that can be embedded in source code, and
// restores them.
//
// Each table is packed into zig-zag varints, compressed with zstd, prefixed with a header carrying
// a magic number, the table kind, and a checksum of the payload, and finally encoded in base64 and
// split into chunks of at most MaxChunkLen characters.
package codec

import (
	"fmt"
	"sort"

	"github.com/nihei9/urchin/compressor"
	spec "github.com/nihei9/urchin/spec/grammar"
)

// Encode encodes all tables into a bundle.
func Encode(tabs *spec.ParsingTables) (*spec.TableBundle, error) {
	action, err := EncodeActionTable(tabs.Action)
	if err != nil {
		return nil, err
	}
	goTo, err := EncodeGoToTable(tabs.GoTo)
	if err != nil {
		return nil, err
	}
	rule, err := EncodeRuleTable(tabs.Rules)
	if err != nil {
		return nil, err
	}
	merge, err := EncodeMergeTable(tabs.Merges)
	if err != nil {
		return nil, err
	}
	term, err := EncodeTerminalTable(tabs.Terminals)
	if err != nil {
		return nil, err
	}
	return &spec.TableBundle{
		Action:   action,
		GoTo:     goTo,
		Rule:     rule,
		Merge:    merge,
		Terminal: term,
	}, nil
}

// Decode restores all tables of a bundle and checks that they agree with each other. A table is
// never partially restored: any failure returns no tables.
func Decode(b *spec.TableBundle) (*spec.ParsingTables, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: no table bundle", ErrCorruptTable)
	}
	action, err := DecodeActionTable(b.Action)
	if err != nil {
		return nil, err
	}
	goTo, err := DecodeGoToTable(b.GoTo)
	if err != nil {
		return nil, err
	}
	rules, err := DecodeRuleTable(b.Rule)
	if err != nil {
		return nil, err
	}
	merges, err := DecodeMergeTable(b.Merge)
	if err != nil {
		return nil, err
	}
	terms, err := DecodeTerminalTable(b.Terminal)
	if err != nil {
		return nil, err
	}
	tabs := &spec.ParsingTables{
		Action:    action,
		GoTo:      goTo,
		Rules:     rules,
		Merges:    merges,
		Terminals: terms,
	}
	if err := checkConsistency(tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

func checkConsistency(tabs *spec.ParsingTables) error {
	if tabs.Action.StateCount != tabs.GoTo.StateCount {
		return corrupt(spec.TableKindGoTo, stageShape, fmt.Errorf("state count mismatch; action: %v, goto: %v", tabs.Action.StateCount, tabs.GoTo.StateCount))
	}
	for i, cell := range tabs.Action.Cells {
		for _, act := range cell {
			switch act.Kind {
			case spec.ActionKindShift:
				if act.Arg >= tabs.Action.StateCount {
					return corrupt(spec.TableKindAction, stageShape, fmt.Errorf("cell %v shifts to an unknown state: %v", i, act.Arg))
				}
			case spec.ActionKindReduce:
				if act.Arg >= len(tabs.Rules) {
					return corrupt(spec.TableKindAction, stageShape, fmt.Errorf("cell %v reduces an unknown rule: %v", i, act.Arg))
				}
			}
		}
	}
	for i, next := range tabs.GoTo.Entries {
		if next >= tabs.GoTo.StateCount {
			return corrupt(spec.TableKindGoTo, stageShape, fmt.Errorf("entry %v refers to an unknown state: %v", i, next))
		}
	}
	for i, r := range tabs.Rules {
		if r.RHSLen == 0 && r.LHS == 0 {
			continue
		}
		if r.LHS >= tabs.GoTo.NonTerminalCount {
			return corrupt(spec.TableKindRule, stageShape, fmt.Errorf("rule %v has an unknown LHS: %v", i, r.LHS))
		}
	}
	for _, t := range tabs.Terminals {
		if t.Terminal >= tabs.Action.TerminalCount {
			return corrupt(spec.TableKindTerminal, stageShape, fmt.Errorf("unknown terminal: %v", t.Terminal))
		}
	}
	return nil
}

// CheckActionIDs reports a CorruptTableError when a rule or a merge refers to an action beyond the
// actionCount actions and mergeCount merge actions of a grammar. Action 0 of a rule means no action,
// and every merge has an action.
func CheckActionIDs(tabs *spec.ParsingTables, actionCount, mergeCount int) error {
	for i, r := range tabs.Rules {
		if r.ActionID == 0 {
			continue
		}
		if r.ActionID < 0 || r.ActionID >= actionCount {
			return corrupt(spec.TableKindRule, stageShape, fmt.Errorf("rule %v refers to an unknown action: %v", i, r.ActionID))
		}
	}
	for i, m := range tabs.Merges {
		if m.ActionID <= 0 || m.ActionID >= mergeCount {
			return corrupt(spec.TableKindMerge, stageShape, fmt.Errorf("merge %v refers to an unknown merge action: %v", i, m.ActionID))
		}
	}
	return nil
}

// EncodeActionTable encodes the action table. Cells holding the same actions share one entry of
// an action list table, and the matrix of list indexes is compressed by row displacement.
func EncodeActionTable(tab *spec.ActionTable) ([]string, error) {
	var lists [][]spec.Action
	key2List := map[string]int{}
	index := make([]int, len(tab.Cells))
	for i, cell := range tab.Cells {
		if len(cell) == 0 {
			continue
		}
		kw := &writer{}
		for _, act := range cell {
			kw.int(int(act.Kind))
			kw.int(act.Arg)
			kw.int(act.Prec)
			kw.int(int(act.Assoc))
		}
		key := string(kw.buf)
		n, ok := key2List[key]
		if !ok {
			lists = append(lists, cell)
			n = len(lists)
			key2List[key] = n
		}
		index[i] = n
	}

	orig, err := compressor.NewOriginalTable(index, tab.StateCount, tab.TerminalCount)
	if err != nil {
		return nil, err
	}
	comp := compressor.NewRowDisplacementTable(0)
	if err := comp.Compress(orig); err != nil {
		return nil, err
	}

	w := &writer{}
	w.int(tab.StateCount)
	w.int(tab.TerminalCount)
	w.ints(comp.Entries)
	w.ints(comp.Bounds)
	w.ints(comp.RowDisplacement)
	w.int(len(lists))
	for _, l := range lists {
		w.int(len(l))
		for _, act := range l {
			w.int(int(act.Kind))
			w.int(act.Arg)
			w.int(act.Prec)
			w.int(int(act.Assoc))
		}
	}
	return pack(spec.TableKindAction, w.buf)
}

func DecodeActionTable(chunks []string) (*spec.ActionTable, error) {
	payload, err := unpack(spec.TableKindAction, chunks)
	if err != nil {
		return nil, err
	}
	r := &reader{
		kind: spec.TableKindAction,
		buf:  payload,
	}
	stateCount, termCount := r.size()
	comp := &compressor.RowDisplacementTable{
		OriginalRowCount: stateCount,
		OriginalColCount: termCount,
		EmptyValue:       0,
		Entries:          r.ints(),
		Bounds:           r.ints(),
		RowDisplacement:  r.ints(),
	}
	lists := make([][]spec.Action, r.count())
	for i := range lists {
		l := make([]spec.Action, r.count())
		for j := range l {
			l[j] = spec.Action{
				Kind:  spec.ActionKind(r.int()),
				Arg:   r.int(),
				Prec:  r.int(),
				Assoc: spec.Assoc(r.int()),
			}
			if l[j].Kind < spec.ActionKindShift || l[j].Kind > spec.ActionKindAccept || l[j].Arg < 0 {
				r.fail("invalid action: %+v", l[j])
			}
		}
		lists[i] = l
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	if err := comp.Validate(); err != nil {
		return nil, corrupt(spec.TableKindAction, stageShape, err)
	}
	index, err := compressor.Expand(comp)
	if err != nil {
		return nil, corrupt(spec.TableKindAction, stageShape, err)
	}

	tab := spec.NewActionTable(stateCount, termCount)
	for i, n := range index {
		if n < 0 || n > len(lists) {
			return nil, corrupt(spec.TableKindAction, stageShape, fmt.Errorf("cell %v refers to an unknown action list: %v", i, n))
		}
		if n == 0 {
			continue
		}
		tab.Cells[i] = lists[n-1]
	}
	return tab, nil
}

// EncodeGoToTable encodes the goto table. Many states share the same row (often an empty one), so
// the table is compressed by sharing identical rows.
func EncodeGoToTable(tab *spec.GoToTable) ([]string, error) {
	entries := make([]int, len(tab.Entries))
	for i, next := range tab.Entries {
		entries[i] = next + 1
	}
	orig, err := compressor.NewOriginalTable(entries, tab.StateCount, tab.NonTerminalCount)
	if err != nil {
		return nil, err
	}
	comp := compressor.NewUniqueEntriesTable()
	if err := comp.Compress(orig); err != nil {
		return nil, err
	}

	w := &writer{}
	w.int(tab.StateCount)
	w.int(tab.NonTerminalCount)
	w.ints(comp.UniqueEntries)
	w.ints(comp.RowNums)
	return pack(spec.TableKindGoTo, w.buf)
}

func DecodeGoToTable(chunks []string) (*spec.GoToTable, error) {
	payload, err := unpack(spec.TableKindGoTo, chunks)
	if err != nil {
		return nil, err
	}
	r := &reader{
		kind: spec.TableKindGoTo,
		buf:  payload,
	}
	stateCount, nonTermCount := r.size()
	comp := &compressor.UniqueEntriesTable{
		OriginalRowCount: stateCount,
		OriginalColCount: nonTermCount,
		UniqueEntries:    r.ints(),
		RowNums:          r.ints(),
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	if err := comp.Validate(); err != nil {
		return nil, corrupt(spec.TableKindGoTo, stageShape, err)
	}
	entries, err := compressor.Expand(comp)
	if err != nil {
		return nil, corrupt(spec.TableKindGoTo, stageShape, err)
	}

	tab := spec.NewGoToTable(stateCount, nonTermCount)
	for i, e := range entries {
		if e < 0 {
			return nil, corrupt(spec.TableKindGoTo, stageShape, fmt.Errorf("invalid entry: %v", e))
		}
		tab.Entries[i] = e - 1
	}
	return tab, nil
}

func EncodeRuleTable(tab spec.RuleTable) ([]string, error) {
	w := &writer{}
	w.int(len(tab))
	for _, r := range tab {
		w.int(r.LHS)
		w.int(r.RHSLen)
		w.int(r.ActionID)
		w.int(int(r.Builtin))
	}
	return pack(spec.TableKindRule, w.buf)
}

func DecodeRuleTable(chunks []string) (spec.RuleTable, error) {
	payload, err := unpack(spec.TableKindRule, chunks)
	if err != nil {
		return nil, err
	}
	r := &reader{
		kind: spec.TableKindRule,
		buf:  payload,
	}
	tab := make(spec.RuleTable, r.count())
	for i := range tab {
		tab[i] = spec.Rule{
			LHS:      r.int(),
			RHSLen:   r.int(),
			ActionID: r.int(),
			Builtin:  spec.BuiltinKind(r.int()),
		}
		if tab[i].LHS < 0 || tab[i].RHSLen < 0 || tab[i].ActionID < 0 || tab[i].Builtin < spec.BuiltinNone || tab[i].Builtin > spec.BuiltinTuple {
			r.fail("invalid rule #%v: %+v", i, tab[i])
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return tab, nil
}

func EncodeMergeTable(tab spec.MergeTable) ([]string, error) {
	w := &writer{}
	w.int(len(tab))
	for _, m := range tab {
		w.int(m.LHS)
		w.int(m.ProductionA)
		w.int(m.ProductionB)
		w.int(m.ActionID)
	}
	return pack(spec.TableKindMerge, w.buf)
}

func DecodeMergeTable(chunks []string) (spec.MergeTable, error) {
	payload, err := unpack(spec.TableKindMerge, chunks)
	if err != nil {
		return nil, err
	}
	r := &reader{
		kind: spec.TableKindMerge,
		buf:  payload,
	}
	tab := make(spec.MergeTable, r.count())
	for i := range tab {
		tab[i] = spec.Merge{
			LHS:         r.int(),
			ProductionA: r.int(),
			ProductionB: r.int(),
			ActionID:    r.int(),
		}
		if tab[i].ProductionA < spec.MergeWildcard || tab[i].ProductionB < spec.MergeWildcard || tab[i].ActionID <= 0 {
			r.fail("invalid merge entry #%v: %+v", i, tab[i])
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return tab, nil
}

func EncodeTerminalTable(tab spec.TerminalTable) ([]string, error) {
	w := &writer{}
	w.int(len(tab))
	for _, m := range tab {
		w.int(m.From)
		w.int(m.To)
		w.int(m.Terminal)
	}
	return pack(spec.TableKindTerminal, w.buf)
}

func DecodeTerminalTable(chunks []string) (spec.TerminalTable, error) {
	payload, err := unpack(spec.TableKindTerminal, chunks)
	if err != nil {
		return nil, err
	}
	r := &reader{
		kind: spec.TableKindTerminal,
		buf:  payload,
	}
	tab := make(spec.TerminalTable, r.count())
	for i := range tab {
		tab[i] = spec.TerminalMapping{
			From:     r.int(),
			To:       r.int(),
			Terminal: r.int(),
		}
		if tab[i].From > tab[i].To || tab[i].Terminal <= 0 {
			r.fail("invalid mapping #%v: %+v", i, tab[i])
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	if !sort.SliceIsSorted(tab, func(i, j int) bool { return tab[i].From < tab[j].From }) {
		return nil, corrupt(spec.TableKindTerminal, stageShape, fmt.Errorf("mappings are not sorted"))
	}
	for i := 1; i < len(tab); i++ {
		if tab[i].From <= tab[i-1].To {
			return nil, corrupt(spec.TableKindTerminal, stageShape, fmt.Errorf("mappings overlap: %+v, %+v", tab[i-1], tab[i]))
		}
	}
	return tab, nil
}
