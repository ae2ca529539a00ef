package driver

import (
	"sort"

	spec "github.com/nihei9/urchin/spec/grammar"
)

// List is the value of an iteration: Star, Plus, and SepList items.
type List []any

// Tuple is the value of a nested sequence.
type Tuple []any

type valueGroup struct {
	prod   int
	values []any
}

// evaluator computes the values of derivations after the input is accepted. Values of a derivation
// are computed once however many parents share it.
type evaluator struct {
	semAct    SemanticActionSet
	tabs      *spec.ParsingTables
	g         *graph
	maxValues int
	memo      map[int][]any
	visiting  map[int]bool
	truncated bool
}

func newEvaluator(semAct SemanticActionSet, tabs *spec.ParsingTables, g *graph, maxValues int) *evaluator {
	return &evaluator{
		semAct:    semAct,
		tabs:      tabs,
		g:         g,
		maxValues: maxValues,
		memo:      map[int][]any{},
		visiting:  map[int]bool{},
	}
}

func (e *evaluator) eval(deriv int) []any {
	if vs, ok := e.memo[deriv]; ok {
		return vs
	}
	d := &e.g.forest[deriv]
	if d.term != nil {
		vs := []any{e.semAct.Shift(d.term)}
		e.memo[deriv] = vs
		return vs
	}

	e.visiting[deriv] = true
	lhs := d.sym
	var groups []*valueGroup
	for _, alt := range e.sortedAlts(deriv) {
		// An alternative deriving itself has no finite value.
		if e.cyclic(alt) {
			continue
		}
		vs := e.evalAlt(alt)
		if len(vs) == 0 {
			continue
		}
		merged := false
		for _, grp := range groups {
			id, ok := e.tabs.Merges.Lookup(lhs, grp.prod, alt.prod)
			if !ok {
				continue
			}
			grp.values = e.merge(id, lhs, grp.values, vs)
			merged = true
			break
		}
		if !merged {
			groups = append(groups, &valueGroup{
				prod:   alt.prod,
				values: vs,
			})
		}
	}
	delete(e.visiting, deriv)

	var vs []any
	for _, grp := range groups {
		for _, v := range grp.values {
			if len(vs) >= e.maxValues {
				e.truncated = true
				break
			}
			vs = append(vs, v)
		}
	}
	e.memo[deriv] = vs
	return vs
}

func (e *evaluator) cyclic(alt forestAlt) bool {
	for _, c := range alt.children {
		if e.visiting[c] {
			return true
		}
	}
	return false
}

// sortedAlts orders alternatives by production number and then by the boundaries of their children.
func (e *evaluator) sortedAlts(deriv int) []forestAlt {
	alts := append([]forestAlt(nil), e.g.forest[deriv].alts...)
	sort.SliceStable(alts, func(i, j int) bool {
		a, b := alts[i], alts[j]
		if a.prod != b.prod {
			return a.prod < b.prod
		}
		for k := range a.children {
			if k >= len(b.children) {
				return false
			}
			ca, cb := e.g.forest[a.children[k]], e.g.forest[b.children[k]]
			if ca.start != cb.start {
				return ca.start < cb.start
			}
			if ca.end != cb.end {
				return ca.end < cb.end
			}
		}
		return false
	})
	return alts
}

// evalAlt reduces every combination of the values of the children.
func (e *evaluator) evalAlt(alt forestAlt) []any {
	combos := [][]any{{}}
	for _, c := range alt.children {
		cvs := e.eval(c)
		if len(cvs) == 0 {
			return nil
		}
		next := make([][]any, 0, len(combos)*len(cvs))
	COMBO:
		for _, combo := range combos {
			for _, v := range cvs {
				if len(next) >= e.maxValues {
					e.truncated = true
					break COMBO
				}
				args := make([]any, len(combo), len(combo)+1)
				copy(args, combo)
				next = append(next, append(args, v))
			}
		}
		combos = next
	}

	rule := e.tabs.Rules[alt.prod]
	vs := make([]any, 0, len(combos))
	for _, args := range combos {
		vs = append(vs, e.reduce(alt.prod, rule, args))
	}
	return vs
}

func (e *evaluator) reduce(prod int, rule spec.Rule, args []any) any {
	switch rule.Builtin {
	case spec.BuiltinListEmpty:
		return List{}
	case spec.BuiltinListSingle:
		return List{args[0]}
	case spec.BuiltinListAppend:
		return appendList(args[0], args[1])
	case spec.BuiltinListAppendSkipSep:
		return appendList(args[0], args[2])
	case spec.BuiltinOptionalNone:
		return nil
	case spec.BuiltinPassThrough:
		return args[0]
	case spec.BuiltinTuple:
		return append(Tuple{}, args...)
	}
	return e.semAct.Reduce(prod, rule.LHS, rule.ActionID, args)
}

// appendList copies the list so that values sharing a prefix stay independent.
func appendList(list any, item any) List {
	l, _ := list.(List)
	c := make(List, len(l), len(l)+1)
	copy(c, l)
	return append(c, item)
}

func (e *evaluator) merge(mergeID, lhs int, as, bs []any) []any {
	vs := make([]any, 0, len(as)*len(bs))
	for _, a := range as {
		for _, b := range bs {
			if len(vs) >= e.maxValues {
				e.truncated = true
				return vs
			}
			vs = append(vs, e.semAct.Merge(mergeID, lhs, a, b))
		}
	}
	return vs
}
