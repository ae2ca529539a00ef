package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	spec "github.com/nihei9/urchin/spec/grammar"
)

// SemanticActionSet builds the values of derivations. A parser calls it only after the input is
// accepted, and may call it several times for one derivation when the input is ambiguous, so its
// methods must not have side effects beyond their return values.
type SemanticActionSet interface {
	// Shift returns the value of a terminal.
	Shift(term *Terminal) any

	// Reduce returns the value of a production. `actionID` is the semantic action of the production
	// and `args` holds the values of its RHS symbols.
	Reduce(prod, lhs, actionID int, args []any) any

	// Merge combines two values of one ambiguous derivation of `lhs`. Merge functions must be
	// commutative and associative; the order in which alternatives are merged is unspecified.
	Merge(mergeID, lhs int, a, b any) any
}

type ShiftFunc func(term *Terminal) any

// ActionFunc computes the value of a production from the values of its RHS symbols.
type ActionFunc func(args []any) any

type MergeFunc func(a, b any) any

type dispatcherConfig struct {
	shift         ShiftFunc
	defaultAction ActionFunc
	defaultMerge  MergeFunc
}

type DispatcherOption func(c *dispatcherConfig)

// ShiftWith sets the function computing the values of terminals. By default a terminal's value is
// its lexeme as a string.
func ShiftWith(f ShiftFunc) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.shift = f
	}
}

// DefaultAction serves actions the action map lacks.
func DefaultAction(f ActionFunc) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.defaultAction = f
	}
}

// DefaultMerge serves merge actions the merge map lacks.
func DefaultMerge(f MergeFunc) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.defaultMerge = f
	}
}

var _ SemanticActionSet = &Dispatcher{}

// Dispatcher binds the action names of a grammar to functions.
type Dispatcher struct {
	shift   ShiftFunc
	actions []ActionFunc
	merges  []MergeFunc
}

// NewDispatcher resolves every action and merge action of gram. A name missing from the maps is an
// error unless a default is given.
func NewDispatcher(gram Grammar, actions map[string]ActionFunc, merges map[string]MergeFunc, opts ...DispatcherOption) (*Dispatcher, error) {
	c := &dispatcherConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.shift == nil {
		c.shift = func(term *Terminal) any {
			return string(term.Lexeme)
		}
	}

	var missing []string
	actNames := gram.Actions()
	acts := make([]ActionFunc, len(actNames))
	for id, name := range actNames {
		if id == 0 {
			continue
		}
		f, ok := actions[name]
		if !ok {
			f = c.defaultAction
		}
		if f == nil {
			missing = append(missing, fmt.Sprintf("action %v", name))
			continue
		}
		acts[id] = f
	}
	mergeNames := gram.MergeActions()
	ms := make([]MergeFunc, len(mergeNames))
	for id, name := range mergeNames {
		if id == 0 {
			continue
		}
		f, ok := merges[name]
		if !ok {
			f = c.defaultMerge
		}
		if f == nil {
			missing = append(missing, fmt.Sprintf("merge action %v", name))
			continue
		}
		ms[id] = f
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("grammar %v: undefined %v", gram.Name(), strings.Join(missing, ", "))
	}

	return &Dispatcher{
		shift:   c.shift,
		actions: acts,
		merges:  ms,
	}, nil
}

func (d *Dispatcher) Shift(term *Terminal) any {
	return d.shift(term)
}

// Reduce calls the action of a production. A production without an action passes its only value
// through, or returns the values of its RHS as a Tuple.
func (d *Dispatcher) Reduce(prod, lhs, actionID int, args []any) any {
	if actionID == 0 {
		if len(args) == 1 {
			return args[0]
		}
		return append(Tuple{}, args...)
	}
	return d.actions[actionID](args)
}

func (d *Dispatcher) Merge(mergeID, lhs int, a, b any) any {
	return d.merges[mergeID](a, b)
}

var _ SemanticActionSet = &SyntaxTreeActionSet{}

// SyntaxTreeActionSet builds concrete syntax trees. Values of iterations and nested sequences are
// spliced into the parent node, and an ambiguous derivation having a merge action becomes an
// ambiguity node holding every alternative.
type SyntaxTreeActionSet struct {
	gram Grammar
}

func NewSyntaxTreeActionSet(gram Grammar) *SyntaxTreeActionSet {
	return &SyntaxTreeActionSet{
		gram: gram,
	}
}

func (a *SyntaxTreeActionSet) Shift(term *Terminal) any {
	if term.ID == spec.TerminalScanError {
		return &Node{
			Type:     NodeTypeError,
			KindName: a.gram.Terminal(term.ID),
			Text:     string(term.Lexeme),
			Row:      term.Row,
			Col:      term.Col,
		}
	}
	return &Node{
		Type:     NodeTypeTerminal,
		KindName: a.gram.Terminal(term.ID),
		Text:     string(term.Lexeme),
		Row:      term.Row,
		Col:      term.Col,
	}
}

func (a *SyntaxTreeActionSet) Reduce(prod, lhs, actionID int, args []any) any {
	return &Node{
		Type:     NodeTypeNonTerminal,
		KindName: a.gram.NonTerminal(lhs),
		Children: flatten(nil, args),
	}
}

func (a *SyntaxTreeActionSet) Merge(mergeID, lhs int, x, y any) any {
	var children []*Node
	for _, v := range []any{x, y} {
		if n, ok := v.(*Node); ok && n.Type == NodeTypeAmbiguity {
			children = append(children, n.Children...)
			continue
		}
		children = flatten(children, []any{v})
	}
	return &Node{
		Type:     NodeTypeAmbiguity,
		KindName: AmbiguityKindName,
		Children: children,
	}
}

func flatten(nodes []*Node, vs []any) []*Node {
	for _, v := range vs {
		switch x := v.(type) {
		case *Node:
			nodes = append(nodes, x)
		case List:
			nodes = flatten(nodes, x)
		case Tuple:
			nodes = flatten(nodes, x)
		case []any:
			nodes = flatten(nodes, x)
		}
	}
	return nodes
}

type NodeType int

const (
	NodeTypeError       = 0
	NodeTypeTerminal    = 1
	NodeTypeNonTerminal = 2
	NodeTypeAmbiguity   = 3
)

const AmbiguityKindName = "<ambiguity>"

type Node struct {
	Type     NodeType
	KindName string
	Text     string
	Row      int
	Col      int
	Children []*Node
}

func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NodeTypeError, NodeTypeTerminal:
		return json.Marshal(struct {
			Type     NodeType `json:"type"`
			KindName string   `json:"kind_name"`
			Text     string   `json:"text"`
			Row      int      `json:"row"`
			Col      int      `json:"col"`
		}{
			Type:     n.Type,
			KindName: n.KindName,
			Text:     n.Text,
			Row:      n.Row,
			Col:      n.Col,
		})
	case NodeTypeNonTerminal, NodeTypeAmbiguity:
		return json.Marshal(struct {
			Type     NodeType `json:"type"`
			KindName string   `json:"kind_name"`
			Children []*Node  `json:"children"`
		}{
			Type:     n.Type,
			KindName: n.KindName,
			Children: n.Children,
		})
	default:
		return nil, fmt.Errorf("invalid node type: %v", n.Type)
	}
}

// PrintTree prints a syntax tree whose root is `node`.
func PrintTree(w io.Writer, node *Node) {
	printTree(w, node, "", "")
}

func printTree(w io.Writer, node *Node, ruledLine string, childRuledLinePrefix string) {
	if node == nil {
		return
	}

	switch node.Type {
	case NodeTypeError:
		fmt.Fprintf(w, "%v%v %v\n", ruledLine, node.KindName, strconv.Quote(node.Text))
	case NodeTypeTerminal:
		fmt.Fprintf(w, "%v%v %v\n", ruledLine, node.KindName, strconv.Quote(node.Text))
	case NodeTypeNonTerminal, NodeTypeAmbiguity:
		fmt.Fprintf(w, "%v%v\n", ruledLine, node.KindName)

		num := len(node.Children)
		for i, child := range node.Children {
			var line string
			if num > 1 && i < num-1 {
				line = "├─ "
			} else {
				line = "└─ "
			}

			var prefix string
			if i >= num-1 {
				prefix = "   "
			} else {
				prefix = "│  "
			}

			printTree(w, child, childRuledLinePrefix+line, childRuledLinePrefix+prefix)
		}
	}
}
