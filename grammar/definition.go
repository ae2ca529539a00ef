package grammar

type Scanner string

const (
	ScannerRune  = Scanner("rune")
	ScannerByte  = Scanner("byte")
	ScannerLexer = Scanner("lexer")
)

type Assoc string

const (
	AssocNil      = Assoc("")
	AssocLeft     = Assoc("left")
	AssocRight    = Assoc("right")
	AssocNonAssoc = Assoc("nonassoc")
)

// Definition is the authoring form of a grammar. GrammarBuilder validates it and turns it into a
// Grammar.
type Definition struct {
	Name string

	// Start is the start symbol. When it is empty, the LHS of the first rule is used.
	Start string

	// Scanner selects how raw input is turned into terminals. The default is ScannerRune.
	Scanner Scanner

	Terminals  []*TerminalDef
	Rules      []*Rule
	Precedence []*PrecLevel
	Merges     []*MergeDef
}

// TerminalDef declares a named terminal.
//
// In rune and byte grammars, Chars lists the raw codes the terminal matches using a character class
// body such as `0-9a-fA-F`. In lexer grammars, either Pattern (a maleeni regular expression) or
// Literal (a string matched as is) is required.
type TerminalDef struct {
	Name    string
	Chars   string
	Pattern string
	Literal string
	Skip    bool
	Pos     Pos
}

type Rule struct {
	LHS string
	RHS Expr

	// Label names the rule so that merge definitions can refer to it.
	Label string

	// Prec names a terminal whose precedence and associativity the rule takes (%prec).
	Prec string

	// Action is the name of the semantic action applied when the rule is reduced.
	Action string

	Pos Pos
}

// PrecLevel is one precedence level. Levels declared later bind tighter.
type PrecLevel struct {
	Assoc     Assoc
	Terminals []string
	Pos       Pos
}

// MergeDef declares a merge action for ambiguous derivations of Symbol. When Rules holds a pair of
// rule labels, the action applies only to derivations produced by those rules.
type MergeDef struct {
	Symbol string
	Rules  []string
	Action string
	Pos    Pos
}
