package driver

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nihei9/urchin/codec"
	spec "github.com/nihei9/urchin/spec/grammar"
	"github.com/sirupsen/logrus"
)

const DefaultMaxValues = 1024

type ParserOption func(p *Parser) error

// SemanticAction sets the semantic action set values are built with. By default the parser builds
// syntax trees with a SyntaxTreeActionSet.
func SemanticAction(semAct SemanticActionSet) ParserOption {
	return func(p *Parser) error {
		p.semAct = semAct
		return nil
	}
}

// Logger sets a logger receiving the progress of parsing at the debug and trace levels.
func Logger(logger logrus.FieldLogger) ParserOption {
	return func(p *Parser) error {
		p.logger = logger
		return nil
	}
}

// MaxValues bounds the number of values a parse yields. Results beyond the bound are dropped and
// Result.Truncated is set.
func MaxValues(n int) ParserOption {
	return func(p *Parser) error {
		if n <= 0 {
			return fmt.Errorf("the maximum number of values must be positive: %v", n)
		}
		p.maxValues = n
		return nil
	}
}

// Cache sets the cache decoded tables are taken from. By default a process-wide cache is used.
func Cache(c *codec.Cache) ParserOption {
	return func(p *Parser) error {
		p.cache = c
		return nil
	}
}

// Parser is a GLR parser. A Parser is not safe for concurrent use, but parsers of one grammar share
// the decoded tables.
type Parser struct {
	gram      Grammar
	src       TerminalSource
	semAct    SemanticActionSet
	logger    logrus.FieldLogger
	maxValues int
	cache     *codec.Cache

	tabsOnce sync.Once
	tabs     *spec.ParsingTables
	tabsErr  error
}

func NewParser(src TerminalSource, gram Grammar, opts ...ParserOption) (*Parser, error) {
	p := &Parser{
		gram:      gram,
		src:       src,
		maxValues: DefaultMaxValues,
	}
	for _, opt := range opts {
		err := opt(p)
		if err != nil {
			return nil, err
		}
	}
	if p.semAct == nil {
		p.semAct = NewSyntaxTreeActionSet(gram)
	}
	if p.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.logger = l
	}
	return p, nil
}

func (p *Parser) tables() (*spec.ParsingTables, error) {
	p.tabsOnce.Do(func() {
		p.tabs, p.tabsErr = DecodeTables(p.gram, p.cache)
	})
	return p.tabs, p.tabsErr
}

// Stats describes the work of one parse.
type Stats struct {
	// Rounds is the number of terminals consumed including EOF.
	Rounds int

	// Forks counts the extra actions of cells holding more than one action.
	Forks int

	// Merges counts reductions that joined an existing stack node.
	Merges int

	Reductions int
	Shifts     int
	Nodes      int

	// MaxFrontier is the largest number of stack tops at one position.
	MaxFrontier int

	// ReductionsByRule counts reductions per production number.
	ReductionsByRule map[int]int
}

// Result holds the values of every surviving derivation of the input.
type Result struct {
	Values    []any
	Truncated bool
	Stats     Stats
}

var ErrAmbiguous = errors.New("ambiguous input")

func (r *Result) First() any {
	if len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

func (r *Result) All() []any {
	return r.Values
}

// Single returns the only value. It fails with ErrAmbiguous when the input has several values.
func (r *Result) Single() (any, error) {
	if len(r.Values) != 1 {
		return nil, fmt.Errorf("%w: %v values", ErrAmbiguous, len(r.Values))
	}
	return r.Values[0], nil
}

// ParseError reports a position where every stack died.
type ParseError struct {
	Terminal *Terminal

	// TerminalName is the name of the terminal that could not be shifted.
	TerminalName string

	// States are the states of the stack tops when the parser failed.
	States []int

	ExpectedTerminals []string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v:%v: unexpected ", e.Terminal.Row+1, e.Terminal.Col+1)
	switch e.Terminal.ID {
	case spec.TerminalEOF:
		fmt.Fprintf(&b, "end of input")
	case spec.TerminalScanError:
		fmt.Fprintf(&b, "input %q", e.Terminal.Lexeme)
		if e.Terminal.Err != nil {
			fmt.Fprintf(&b, " (%v)", e.Terminal.Err)
		}
	default:
		fmt.Fprintf(&b, "%v %q", e.TerminalName, e.Terminal.Lexeme)
	}
	if len(e.ExpectedTerminals) > 0 {
		fmt.Fprintf(&b, "; expected: %v", strings.Join(e.ExpectedTerminals, ", "))
	}
	return b.String()
}

// ExceptionError carries a failure of the terminal source. Error returns the message of the
// original error.
type ExceptionError struct {
	Row int
	Col int
	Err error
}

func (e *ExceptionError) Error() string {
	if e.Err == nil {
		return "exception"
	}
	return e.Err.Error()
}

func (e *ExceptionError) Unwrap() error {
	return e.Err
}

// Parse consumes the terminal source and returns the values of all derivations of the input.
func (p *Parser) Parse() (*Result, error) {
	tabs, err := p.tables()
	if err != nil {
		return nil, err
	}
	r := &run{
		p:    p,
		tabs: tabs,
		g:    &graph{},
		stats: Stats{
			ReductionsByRule: map[int]int{},
		},
	}
	return r.parse()
}

type shift struct {
	state int
	pred  int
}

type reduction struct {
	node int
	prod int
	via  linkRef
}

type run struct {
	p     *Parser
	tabs  *spec.ParsingTables
	g     *graph
	stats Stats
}

func (r *run) parse() (*Result, error) {
	front := newFrontier(0)
	front.add(0, r.g.newNode(0, 0))
	for pos := 0; ; pos++ {
		term := r.p.src.Next()
		if term == nil {
			term = &Terminal{
				ID: r.p.gram.EOF(),
			}
		}
		r.stats.Rounds++
		if term.ID == spec.TerminalException {
			return nil, &ExceptionError{
				Row: term.Row,
				Col: term.Col,
				Err: term.Err,
			}
		}

		if front.size() > r.stats.MaxFrontier {
			r.stats.MaxFrontier = front.size()
		}
		r.p.logger.WithFields(logrus.Fields{
			"pos":      pos,
			"terminal": r.p.gram.Terminal(term.ID),
			"stacks":   front.size(),
		}).Debug("round")

		shifts, accepts, err := r.reduceAll(front, term)
		if err != nil {
			return nil, err
		}

		if term.ID == r.p.gram.EOF() {
			if len(accepts) == 0 {
				return nil, r.parseError(front, term)
			}
			return r.accept(accepts), nil
		}
		if len(shifts) == 0 {
			return nil, r.parseError(front, term)
		}

		leaf := r.g.newLeaf(term, pos)
		next := newFrontier(pos + 1)
		for _, sh := range shifts {
			node, ok := next.get(sh.state)
			if !ok {
				node = r.g.newNode(sh.state, pos+1)
				next.add(sh.state, node)
			}
			r.g.addLink(node, sh.pred, leaf)
			r.stats.Shifts++
		}
		front = next
	}
}

// reduceAll performs every reduction at the current position and returns the pending shifts and the
// nodes accepting the input.
func (r *run) reduceAll(front *frontier, term *Terminal) ([]shift, []int, error) {
	var shifts []shift
	var accepts []int
	var queue []reduction
	for {
		if node, ok := front.pop(); ok {
			n := &r.g.nodes[node]
			n.processed = true
			acts := r.tabs.Action.Lookup(n.state, term.ID)
			if len(acts) > 1 {
				r.stats.Forks += len(acts) - 1
			}
			for _, act := range acts {
				switch act.Kind {
				case spec.ActionKindShift:
					shifts = append(shifts, shift{
						state: act.Arg,
						pred:  node,
					})
				case spec.ActionKindReduce:
					queue = append(queue, reduction{
						node: node,
						prod: act.Arg,
						via:  noLink,
					})
				case spec.ActionKindAccept:
					accepts = append(accepts, node)
				}
			}
			continue
		}
		if len(queue) == 0 {
			break
		}
		red := queue[0]
		queue = queue[1:]
		more, err := r.reduce(front, term, red)
		if err != nil {
			return nil, nil, err
		}
		queue = append(queue, more...)
	}
	r.stats.Nodes = len(r.g.nodes)
	return shifts, accepts, nil
}

func (r *run) reduce(front *frontier, term *Terminal, red reduction) ([]reduction, error) {
	rule := r.tabs.Rules[red.prod]
	var more []reduction
	var err error
	r.g.paths(red.node, rule.RHSLen, red.via, func(end int, children []int) {
		if err != nil {
			return
		}
		u := &r.g.nodes[end]
		next, ok := r.tabs.GoTo.Lookup(u.state, rule.LHS)
		if !ok {
			err = fmt.Errorf("no goto entry for state %v and non-terminal %v", u.state, r.p.gram.NonTerminal(rule.LHS))
			return
		}
		r.stats.Reductions++
		r.stats.ReductionsByRule[red.prod]++
		r.p.logger.WithFields(logrus.Fields{
			"production": red.prod,
			"from":       u.state,
			"to":         next,
		}).Trace("reduce")

		start := u.pos
		w, exist := front.get(next)
		if !exist {
			w = r.g.newNode(next, front.pos)
			front.add(next, w)
			d := r.g.newDeriv(rule.LHS, start, front.pos)
			r.g.addAlt(d, red.prod, children)
			r.g.addLink(w, end, d)
			return
		}

		r.stats.Merges++
		if li := r.g.findLink(w, end); li >= 0 {
			r.g.addAlt(r.g.nodes[w].links[li].deriv, red.prod, children)
			return
		}
		d := r.g.newDeriv(rule.LHS, start, front.pos)
		r.g.addAlt(d, red.prod, children)
		li := r.g.addLink(w, end, d)
		if !r.g.nodes[w].processed {
			return
		}

		// A processed node got a new link. Reductions of processed nodes whose paths pass through
		// the link have to be redone.
		via := linkRef{
			node: w,
			link: li,
		}
		front.each(func(x int) {
			n := &r.g.nodes[x]
			if !n.processed {
				return
			}
			for _, act := range r.tabs.Action.Lookup(n.state, term.ID) {
				if act.Kind != spec.ActionKindReduce || r.tabs.Rules[act.Arg].RHSLen == 0 {
					continue
				}
				more = append(more, reduction{
					node: x,
					prod: act.Arg,
					via:  via,
				})
			}
		})
	})
	return more, err
}

func (r *run) parseError(front *frontier, term *Terminal) error {
	states := front.states()
	seen := map[int]struct{}{}
	var expected []string
	for t := spec.TerminalEOF; t < r.tabs.Action.TerminalCount; t++ {
		if t == spec.TerminalScanError || t == spec.TerminalException {
			continue
		}
		for _, s := range states {
			if len(r.tabs.Action.Lookup(s, t)) == 0 {
				continue
			}
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				expected = append(expected, r.p.gram.Terminal(t))
			}
			break
		}
	}
	return &ParseError{
		Terminal:          term,
		TerminalName:      r.p.gram.Terminal(term.ID),
		States:            states,
		ExpectedTerminals: expected,
	}
}

func (r *run) accept(accepts []int) *Result {
	e := newEvaluator(r.p.semAct, r.tabs, r.g, r.p.maxValues)
	var values []any
	for _, node := range accepts {
		for _, l := range r.g.nodes[node].links {
			for _, v := range e.eval(l.deriv) {
				if len(values) >= r.p.maxValues {
					e.truncated = true
					break
				}
				values = append(values, v)
			}
		}
	}
	r.p.logger.WithFields(logrus.Fields{
		"values":     len(values),
		"reductions": r.stats.Reductions,
		"nodes":      len(r.g.nodes),
	}).Debug("accepted")
	return &Result{
		Values:    values,
		Truncated: e.truncated,
		Stats:     r.stats,
	}
}
