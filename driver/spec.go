package driver

import (
	"fmt"

	"github.com/nihei9/urchin/codec"
	spec "github.com/nihei9/urchin/spec/grammar"
)

// Grammar is what a parser needs from a compiled grammar. Both NewGrammar and the code generated by
// `urchin generate` implement it.
type Grammar interface {
	// Name returns the name of the grammar.
	Name() string

	// EncodedActionTable, EncodedGoToTable, EncodedRuleTable, EncodedMergeTable, and
	// EncodedTerminalTable return the chunks of the encoded tables.
	EncodedActionTable() []string
	EncodedGoToTable() []string
	EncodedRuleTable() []string
	EncodedMergeTable() []string
	EncodedTerminalTable() []string

	// EOF returns the terminal number ending the input.
	EOF() int

	// Terminal returns the name of a terminal.
	Terminal(terminal int) string

	// NonTerminal returns the name of a non-terminal.
	NonTerminal(nonTerminal int) string

	// Actions returns the names of the semantic actions indexed by action ID. Index 0 means no action.
	Actions() []string

	// MergeActions returns the names of the merge actions indexed by merge ID.
	MergeActions() []string
}

type grammarImpl struct {
	g *spec.CompiledGrammar
}

func NewGrammar(g *spec.CompiledGrammar) *grammarImpl {
	return &grammarImpl{
		g: g,
	}
}

func (g *grammarImpl) Name() string {
	return g.g.Name
}

func (g *grammarImpl) EncodedActionTable() []string {
	return g.g.Tables.Action
}

func (g *grammarImpl) EncodedGoToTable() []string {
	return g.g.Tables.GoTo
}

func (g *grammarImpl) EncodedRuleTable() []string {
	return g.g.Tables.Rule
}

func (g *grammarImpl) EncodedMergeTable() []string {
	return g.g.Tables.Merge
}

func (g *grammarImpl) EncodedTerminalTable() []string {
	return g.g.Tables.Terminal
}

func (g *grammarImpl) EOF() int {
	return spec.TerminalEOF
}

func (g *grammarImpl) Terminal(terminal int) string {
	if terminal < 0 || terminal >= len(g.g.Terminals) {
		return ""
	}
	return g.g.Terminals[terminal]
}

func (g *grammarImpl) NonTerminal(nonTerminal int) string {
	if nonTerminal < 0 || nonTerminal >= len(g.g.NonTerminals) {
		return ""
	}
	return g.g.NonTerminals[nonTerminal]
}

func (g *grammarImpl) Actions() []string {
	return g.g.Actions
}

func (g *grammarImpl) MergeActions() []string {
	return g.g.MergeActions
}

func bundle(gram Grammar) *spec.TableBundle {
	return &spec.TableBundle{
		Action:   gram.EncodedActionTable(),
		GoTo:     gram.EncodedGoToTable(),
		Rule:     gram.EncodedRuleTable(),
		Merge:    gram.EncodedMergeTable(),
		Terminal: gram.EncodedTerminalTable(),
	}
}

// DecodeTables decodes the tables of a grammar and checks that they refer only to the actions the
// grammar names. When c is nil, the process-wide cache is used.
func DecodeTables(gram Grammar, c *codec.Cache) (*spec.ParsingTables, error) {
	var tabs *spec.ParsingTables
	var err error
	if c == nil {
		tabs, err = codec.DecodeShared(bundle(gram))
	} else {
		tabs, err = c.Decode(bundle(gram))
	}
	if err != nil {
		return nil, err
	}
	if err := codec.CheckActionIDs(tabs, len(gram.Actions()), len(gram.MergeActions())); err != nil {
		return nil, fmt.Errorf("grammar %v: %w", gram.Name(), err)
	}
	return tabs, nil
}
