package grammar

import (
	mlspec "github.com/nihei9/maleeni/spec"
)

type CompiledGrammar struct {
	Name string `json:"name"`

	// Scanner is one of "rune", "byte", or "lexer".
	Scanner string `json:"scanner"`

	Terminals    []string `json:"terminals"`
	NonTerminals []string `json:"non_terminals"`

	// Actions and MergeActions map action IDs to action names. ID 0 is reserved for "no action" and
	// its name is empty.
	Actions      []string `json:"actions"`
	MergeActions []string `json:"merge_actions"`

	// Lexical is set only when Scanner is "lexer".
	Lexical *LexicalSpecification `json:"lexical,omitempty"`

	Tables *TableBundle `json:"tables"`
}

type LexicalSpecification struct {
	Lexer   string   `json:"lexer"`
	Maleeni *Maleeni `json:"maleeni"`
}

type Maleeni struct {
	Spec *mlspec.CompiledLexSpec `json:"spec"`

	// Skip[kindID] is 1 when tokens of the kind are dropped before parsing.
	Skip []int `json:"skip"`
}

// TableBundle holds the five encoded tables. Each table is a sequence of printable chunks.
type TableBundle struct {
	Action   []string `json:"action"`
	GoTo     []string `json:"goto"`
	Rule     []string `json:"rule"`
	Merge    []string `json:"merge"`
	Terminal []string `json:"terminal"`
}

type TableKind byte

const (
	TableKindAction   = TableKind('A')
	TableKindGoTo     = TableKind('G')
	TableKindRule     = TableKind('R')
	TableKindMerge    = TableKind('M')
	TableKindTerminal = TableKind('T')
)

func (k TableKind) String() string {
	switch k {
	case TableKindAction:
		return "action"
	case TableKindGoTo:
		return "goto"
	case TableKindRule:
		return "rule"
	case TableKindMerge:
		return "merge"
	case TableKindTerminal:
		return "terminal"
	}
	return "unknown"
}

// BuiltinKind selects the value constructor of a production generated by desugaring an iteration,
// an optional item, or a nested group. BuiltinNone means the semantic action set builds the value.
type BuiltinKind int

const (
	BuiltinNone BuiltinKind = iota
	BuiltinListEmpty
	BuiltinListSingle
	BuiltinListAppend
	BuiltinListAppendSkipSep
	BuiltinOptionalNone
	BuiltinPassThrough
	BuiltinTuple
)

func (k BuiltinKind) String() string {
	switch k {
	case BuiltinNone:
		return "none"
	case BuiltinListEmpty:
		return "list-empty"
	case BuiltinListSingle:
		return "list-single"
	case BuiltinListAppend:
		return "list-append"
	case BuiltinListAppendSkipSep:
		return "list-append-skip-sep"
	case BuiltinOptionalNone:
		return "optional-none"
	case BuiltinPassThrough:
		return "pass-through"
	case BuiltinTuple:
		return "tuple"
	}
	return "unknown"
}
