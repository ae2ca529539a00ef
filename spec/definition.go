package spec

import (
	"errors"
	"io"
	"os"

	verr "github.com/nihei9/urchin/error"
	"github.com/nihei9/urchin/grammar"
	"github.com/nihei9/urchin/grammar/symbol"
	"gopkg.in/yaml.v3"
)

// A grammar document is a YAML mapping:
//
//	name: expr
//	scanner: rune
//	start: expr
//	terminals:
//	  - name: digit
//	    chars: 0-9
//	precedence:
//	  - assoc: left
//	    terminals: ["'+'"]
//	rules:
//	  - lhs: expr
//	    rhs: expr '+' expr
//	    label: add
//	    action: add
//	  - lhs: expr
//	    rhs:
//	      - digit+
//	      - "'(' expr ')'"
//	merges:
//	  - symbol: expr
//	    action: union
//
// rhs is either one right-hand side or a list of alternatives. See ParseRHS for the notation.
type document struct {
	Name       string         `yaml:"name"`
	Scanner    string         `yaml:"scanner"`
	Start      string         `yaml:"start"`
	Terminals  []*terminalDoc `yaml:"terminals"`
	Precedence []*precDoc     `yaml:"precedence"`
	Rules      []*ruleDoc     `yaml:"rules"`
	Merges     []*mergeDoc    `yaml:"merges"`
}

type terminalDoc struct {
	Name    string `yaml:"name"`
	Chars   string `yaml:"chars"`
	Pattern string `yaml:"pattern"`
	Literal string `yaml:"literal"`
	Skip    bool   `yaml:"skip"`

	pos Position
}

func (d *terminalDoc) UnmarshalYAML(n *yaml.Node) error {
	type plain terminalDoc
	d.pos = newPosition(n.Line, n.Column)
	return n.Decode((*plain)(d))
}

type precDoc struct {
	Assoc     string   `yaml:"assoc"`
	Terminals []string `yaml:"terminals"`

	pos Position
}

func (d *precDoc) UnmarshalYAML(n *yaml.Node) error {
	type plain precDoc
	d.pos = newPosition(n.Line, n.Column)
	return n.Decode((*plain)(d))
}

type ruleDoc struct {
	LHS    string    `yaml:"lhs"`
	RHS    yaml.Node `yaml:"rhs"`
	Label  string    `yaml:"label"`
	Prec   string    `yaml:"prec"`
	Action string    `yaml:"action"`

	pos Position
}

func (d *ruleDoc) UnmarshalYAML(n *yaml.Node) error {
	type plain ruleDoc
	d.pos = newPosition(n.Line, n.Column)
	return n.Decode((*plain)(d))
}

type mergeDoc struct {
	Symbol string   `yaml:"symbol"`
	Rules  []string `yaml:"rules"`
	Action string   `yaml:"action"`

	pos Position
}

func (d *mergeDoc) UnmarshalYAML(n *yaml.Node) error {
	type plain mergeDoc
	d.pos = newPosition(n.Line, n.Column)
	return n.Decode((*plain)(d))
}

// LoadDefinitionFile reads a grammar document from a file. Errors carry the file path so that they
// can quote the offending line.
func LoadDefinitionFile(path string) (*grammar.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDefinition(f, path)
}

// LoadDefinition reads a grammar document. filePath may be empty.
func LoadDefinition(r io.Reader, filePath string) (*grammar.Definition, error) {
	doc := &document{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &verr.SpecError{
				Cause:    synErrInvalidDocument,
				Detail:   "empty document",
				FilePath: filePath,
			}
		}
		return nil, &verr.SpecError{
			Cause:    synErrInvalidDocument,
			Detail:   err.Error(),
			FilePath: filePath,
		}
	}

	l := &loader{
		filePath: filePath,
		termNames: map[string]struct{}{
			symbol.SymbolNameScanError: {},
		},
	}
	def := l.load(doc)
	if len(l.errs) > 0 {
		return nil, l.errs
	}
	return def, nil
}

type loader struct {
	filePath  string
	termNames map[string]struct{}
	errs      verr.SpecErrors
}

func (l *loader) isTerminal(name string) bool {
	_, ok := l.termNames[name]
	return ok
}

func (l *loader) errorf(cause error, pos Position, detail string) {
	l.errs = append(l.errs, &verr.SpecError{
		Cause:    cause,
		Detail:   detail,
		FilePath: l.filePath,
		Row:      pos.Row,
		Col:      pos.Col,
	})
}

func (l *loader) load(doc *document) *grammar.Definition {
	def := &grammar.Definition{
		Name:    doc.Name,
		Start:   doc.Start,
		Scanner: grammar.Scanner(doc.Scanner),
	}

	for _, t := range doc.Terminals {
		l.termNames[t.Name] = struct{}{}
		def.Terminals = append(def.Terminals, &grammar.TerminalDef{
			Name:    t.Name,
			Chars:   t.Chars,
			Pattern: t.Pattern,
			Literal: t.Literal,
			Skip:    t.Skip,
			Pos:     grammar.Pos(t.pos),
		})
	}

	for _, p := range doc.Precedence {
		def.Precedence = append(def.Precedence, &grammar.PrecLevel{
			Assoc:     grammar.Assoc(p.Assoc),
			Terminals: p.Terminals,
			Pos:       grammar.Pos(p.pos),
		})
	}

	for _, r := range doc.Rules {
		if r.LHS == "" {
			l.errorf(synErrNoLHS, r.pos, "")
			continue
		}
		rhs, ok := l.loadRHS(r)
		if !ok {
			continue
		}
		def.Rules = append(def.Rules, &grammar.Rule{
			LHS:    r.LHS,
			RHS:    rhs,
			Label:  r.Label,
			Prec:   r.Prec,
			Action: r.Action,
			Pos:    grammar.Pos(r.pos),
		})
	}

	for _, m := range doc.Merges {
		def.Merges = append(def.Merges, &grammar.MergeDef{
			Symbol: m.Symbol,
			Rules:  m.Rules,
			Action: m.Action,
			Pos:    grammar.Pos(m.pos),
		})
	}

	return def
}

func (l *loader) loadRHS(r *ruleDoc) (grammar.Expr, bool) {
	n := &r.RHS
	switch n.Kind {
	case 0:
		l.errorf(synErrNoRHS, r.pos, r.LHS)
		return nil, false
	case yaml.ScalarNode:
		return l.parseRHS(n)
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			l.errorf(synErrNoRHS, newPosition(n.Line, n.Column), r.LHS)
			return nil, false
		}
		var alts []grammar.Expr
		ok := true
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				l.errorf(synErrInvalidRHS, newPosition(c.Line, c.Column), r.LHS)
				ok = false
				continue
			}
			e, good := l.parseRHS(c)
			if !good {
				ok = false
				continue
			}
			if alt, isAlt := e.(*grammar.AltExpr); isAlt {
				alts = append(alts, alt.Alts...)
				continue
			}
			alts = append(alts, e)
		}
		if !ok {
			return nil, false
		}
		if len(alts) == 1 {
			return alts[0], true
		}
		return grammar.At(grammar.Alt(alts...), n.Line, n.Column), true
	default:
		l.errorf(synErrInvalidRHS, newPosition(n.Line, n.Column), r.LHS)
		return nil, false
	}
}

func (l *loader) parseRHS(n *yaml.Node) (grammar.Expr, bool) {
	row, col := n.Line, n.Column
	switch n.Style {
	case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle:
		col++
	case yaml.LiteralStyle, yaml.FoldedStyle:
		row, col = n.Line+1, 1
	}
	e, err := ParseRHS(n.Value, l.isTerminal, row, col)
	if err != nil {
		var specErr *verr.SpecError
		if errors.As(err, &specErr) {
			specErr.FilePath = l.filePath
			l.errs = append(l.errs, specErr)
		} else {
			l.errorf(err, newPosition(row, col), "")
		}
		return nil, false
	}
	return e, true
}
