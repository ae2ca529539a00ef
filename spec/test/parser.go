package test

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/nihei9/urchin/driver"
	"github.com/nihei9/urchin/grammar"
	spec "github.com/nihei9/urchin/spec/grammar"
	"gopkg.in/yaml.v3"
)

// treeGrammar describes the tree notation:
//
//	(expr
//	    (expr (num "1"))
//	    ('+' "+")
//	    (expr (num "2")))
//
// A node with a quoted lexeme is a terminal node. Other nodes are non-terminal nodes.
func treeGrammar() *grammar.Definition {
	return &grammar.Definition{
		Name:    "tree",
		Scanner: grammar.ScannerLexer,
		Terminals: []*grammar.TerminalDef{
			{Name: "ws", Pattern: `[\u{0009}\u{000A}\u{000D}\u{0020}]+`, Skip: true},
			{Name: "kind", Pattern: `[A-Za-z_][0-9A-Za-z_@]*|<[0-9A-Za-z_]+>|'([^'\\\u{000A}]|\\[^\u{000A}])+'`},
			{Name: "string", Pattern: `"([^"\\\u{000A}]|\\[^\u{000A}])*"`},
		},
		Rules: []*grammar.Rule{
			{
				LHS:    "tree",
				RHS:    grammar.Seq(grammar.C('('), grammar.T("kind"), grammar.T("string"), grammar.C(')')),
				Action: "leaf",
			},
			{
				LHS:    "tree",
				RHS:    grammar.Seq(grammar.C('('), grammar.T("kind"), grammar.Star(grammar.N("tree")), grammar.C(')')),
				Action: "node",
			},
		},
	}
}

var compiledTreeGrammar = sync.OnceValues(func() (*spec.CompiledGrammar, error) {
	b := &grammar.GrammarBuilder{
		Def: treeGrammar(),
	}
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	cg, _, err := grammar.Compile(g)
	if err != nil {
		return nil, err
	}
	return cg, nil
})

// ParseTree reads a tree in the tree notation. lineOffset is added to the rows of errors.
func ParseTree(src string, lineOffset int) (*Tree, error) {
	cg, err := compiledTreeGrammar()
	if err != nil {
		return nil, fmt.Errorf("failed to compile the tree grammar: %w", err)
	}
	gram := driver.NewGrammar(cg)

	var actErr error
	d, err := driver.NewDispatcher(gram, map[string]driver.ActionFunc{
		"leaf": func(args []any) any {
			lexeme, err := strconv.Unquote(args[2].(string))
			if err != nil && actErr == nil {
				actErr = fmt.Errorf("invalid lexeme %v: %w", args[2], err)
			}
			return NewTerminalNode(args[1].(string), lexeme)
		},
		"node": func(args []any) any {
			var children []*Tree
			for _, c := range args[2].(driver.List) {
				children = append(children, c.(*Tree))
			}
			return NewNonTerminalTree(args[1].(string), children...)
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	toks, err := driver.NewLexerSource(cg, strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	p, err := driver.NewParser(toks, gram, driver.SemanticAction(d))
	if err != nil {
		return nil, err
	}
	res, err := p.Parse()
	if err != nil {
		var perr *driver.ParseError
		if errors.As(err, &perr) {
			shifted := *perr
			term := *perr.Terminal
			term.Row += lineOffset
			shifted.Terminal = &term
			return nil, &shifted
		}
		return nil, err
	}
	if actErr != nil {
		return nil, actErr
	}
	v, err := res.Single()
	if err != nil {
		return nil, err
	}
	return v.(*Tree).Fill(), nil
}

// TestCase is one document of a test file:
//
//	description: addition
//	source: 1+2
//	trees:
//	  - (expr (expr (num "1")) ('+' "+") (expr (num "2")))
//
// An ambiguous source lists one tree per derivation.
type TestCase struct {
	Description string
	Source      []byte
	Trees       []*Tree
}

type testCaseDoc struct {
	Description string      `yaml:"description"`
	Source      string      `yaml:"source"`
	Trees       []yaml.Node `yaml:"trees"`
}

// ParseTestCases reads every document of a test file.
func ParseTestCases(r io.Reader) ([]*TestCase, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cases []*TestCase
	for {
		doc := &testCaseDoc{}
		err := dec.Decode(doc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		c, err := genTestCase(doc)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no test cases")
	}
	return cases, nil
}

func genTestCase(doc *testCaseDoc) (*TestCase, error) {
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("a test case needs at least one tree: %v", doc.Description)
	}
	trees := make([]*Tree, len(doc.Trees))
	for i, n := range doc.Trees {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%v: a tree must be a string", n.Line)
		}
		// Errors report rows counted from 0.
		lineOffset := n.Line - 1
		if n.Style == yaml.LiteralStyle || n.Style == yaml.FoldedStyle {
			lineOffset++
		}
		t, err := ParseTree(n.Value, lineOffset)
		if err != nil {
			return nil, err
		}
		trees[i] = t
	}
	return &TestCase{
		Description: doc.Description,
		Source:      []byte(doc.Source),
		Trees:       trees,
	}, nil
}
