package grammar

type SemanticError struct {
	message string
}

func newSemanticError(message string) *SemanticError {
	return &SemanticError{
		message: message,
	}
}

func (e *SemanticError) Error() string {
	return e.message
}

var (
	semErrNoProduction        = newSemanticError("a grammar needs at least one production")
	semErrInvalidScanner      = newSemanticError("invalid scanner; it must be one of rune, byte, or lexer")
	semErrUnusedProduction    = newSemanticError("unused production")
	semErrTermCannotBeSkipped = newSemanticError("a terminal used in productions cannot be skipped")
	semErrUndefinedSym        = newSemanticError("undefined symbol")
	semErrNoStartRule         = newSemanticError("the start symbol has no production")
	semErrDuplicateProduction = newSemanticError("duplicate production")
	semErrDuplicateTerminal   = newSemanticError("duplicate terminal")
	semErrDuplicateName       = newSemanticError("duplicate names are not allowed between terminals and non-terminals")
	semErrReservedSymbol      = newSemanticError("a reserved symbol cannot be defined")
	semErrReservedSymbolRef   = newSemanticError("<eof> and <exception> cannot appear in productions")
	semErrInvalidTerminalDef  = newSemanticError("invalid terminal definition")
	semErrInvalidCharClass    = newSemanticError("invalid character class")
	semErrCodeOutOfRange      = newSemanticError("a byte grammar accepts only codes between 0 and 255")
	semErrCodeConflict        = newSemanticError("a raw code is matched by more than one terminal")
	semErrEmptyRHS            = newSemanticError("a rule needs a right-hand side")
	semErrDuplicateAssoc      = newSemanticError("a terminal appears in more than one precedence level")
	semErrInvalidAssoc        = newSemanticError("invalid associativity; it must be one of left, right, or nonassoc")
	semErrUndefinedPrecSym    = newSemanticError("%prec names a terminal without precedence")
	semErrInvalidMergeRules   = newSemanticError("a merge definition takes zero or two rule labels")
	semErrUndefinedLabel      = newSemanticError("undefined rule label")
	semErrNoMergeAction       = newSemanticError("a merge definition needs an action")
	semErrDuplicateMerge      = newSemanticError("duplicate merge definition")
	semErrNonAssocConflict    = newSemanticError("shift/reduce conflict between non-associative operators of equal precedence")
	semErrShiftAcceptConflict = newSemanticError("a cell holds both shift and accept")
	semErrTooManyStates       = newSemanticError("the automaton exceeds the state limit")
)
