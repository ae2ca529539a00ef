package driver

import (
	"github.com/emirpasic/gods/maps/treemap"
)

// The graph-structured stack and the derivation forest live in arenas and refer to each other by
// index.

type gssLink struct {
	pred  int
	deriv int
}

type gssNode struct {
	state int
	pos   int
	links []gssLink

	// processed is set once the actions of the node have been enumerated.
	processed bool
}

type forestAlt struct {
	prod     int
	children []int
}

type forestNode struct {
	// sym is a terminal number for leaves and a non-terminal number otherwise.
	sym   int
	start int
	end   int
	term  *Terminal
	alts  []forestAlt
}

type linkRef struct {
	node int
	link int
}

var noLink = linkRef{node: -1, link: -1}

type graph struct {
	nodes  []gssNode
	forest []forestNode
}

func (g *graph) newNode(state, pos int) int {
	g.nodes = append(g.nodes, gssNode{
		state: state,
		pos:   pos,
	})
	return len(g.nodes) - 1
}

func (g *graph) newLeaf(term *Terminal, pos int) int {
	g.forest = append(g.forest, forestNode{
		sym:   term.ID,
		start: pos,
		end:   pos + 1,
		term:  term,
	})
	return len(g.forest) - 1
}

func (g *graph) newDeriv(lhs, start, end int) int {
	g.forest = append(g.forest, forestNode{
		sym:   lhs,
		start: start,
		end:   end,
	})
	return len(g.forest) - 1
}

// addAlt records an alternative of a derivation. It returns false when the same alternative already
// exists.
func (g *graph) addAlt(deriv, prod int, children []int) bool {
	d := &g.forest[deriv]
	for _, alt := range d.alts {
		if alt.prod == prod && equalInts(alt.children, children) {
			return false
		}
	}
	d.alts = append(d.alts, forestAlt{
		prod:     prod,
		children: children,
	})
	return true
}

func (g *graph) findLink(node, pred int) int {
	for i, l := range g.nodes[node].links {
		if l.pred == pred {
			return i
		}
	}
	return -1
}

func (g *graph) addLink(node, pred, deriv int) int {
	n := &g.nodes[node]
	n.links = append(n.links, gssLink{
		pred:  pred,
		deriv: deriv,
	})
	return len(n.links) - 1
}

// paths calls f for every path of the given length starting at node. children lists the derivations
// along the path from left to right. When via is set, only paths passing through that link are
// reported.
func (g *graph) paths(node, length int, via linkRef, f func(end int, children []int)) {
	children := make([]int, length)
	var walk func(n, remaining int, used bool)
	walk = func(n, remaining int, used bool) {
		if remaining == 0 {
			if via.node >= 0 && !used {
				return
			}
			f(n, append([]int(nil), children...))
			return
		}
		for i, l := range g.nodes[n].links {
			children[remaining-1] = l.deriv
			walk(l.pred, remaining-1, used || (n == via.node && i == via.link))
		}
	}
	walk(node, length, false)
}

// frontier holds the stack tops of one input position. Each state appears at most once.
type frontier struct {
	pos   int
	nodes *treemap.Map
	queue []int
}

func newFrontier(pos int) *frontier {
	return &frontier{
		pos:   pos,
		nodes: treemap.NewWithIntComparator(),
	}
}

func (f *frontier) get(state int) (int, bool) {
	v, ok := f.nodes.Get(state)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (f *frontier) add(state, node int) {
	f.nodes.Put(state, node)
	f.queue = append(f.queue, node)
}

func (f *frontier) pop() (int, bool) {
	if len(f.queue) == 0 {
		return 0, false
	}
	n := f.queue[0]
	f.queue = f.queue[1:]
	return n, true
}

// each visits the nodes in ascending order of their states.
func (f *frontier) each(fn func(node int)) {
	it := f.nodes.Iterator()
	for it.Next() {
		fn(it.Value().(int))
	}
}

func (f *frontier) states() []int {
	keys := f.nodes.Keys()
	states := make([]int, len(keys))
	for i, k := range keys {
		states[i] = k.(int)
	}
	return states
}

func (f *frontier) size() int {
	return f.nodes.Size()
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
