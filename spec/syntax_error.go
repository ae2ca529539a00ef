package spec

import "fmt"

type SyntaxError struct {
	message string
}

func newSyntaxError(message string) *SyntaxError {
	return &SyntaxError{
		message: message,
	}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s", e.message)
}

var (
	// lexical errors
	synErrInvalidEscSeq = newSyntaxError("invalid escape sequence")

	// syntax errors
	synErrInvalidToken    = newSyntaxError("invalid token")
	synErrUnexpectedToken = newSyntaxError("unexpected token")
	synErrUnexpectedEOF   = newSyntaxError("unexpected end of a right-hand side")
	synErrEmptyInSequence = newSyntaxError("ε must be the only element of an alternative")
	synErrUnclosedGroup   = newSyntaxError("unclosed group")
	synErrUnclosedSepList = newSyntaxError("unclosed separated list")
	synErrSepListNoSep    = newSyntaxError("a separated list needs % and a separator")

	// definition errors
	synErrInvalidDocument = newSyntaxError("invalid grammar document")
	synErrNoRHS           = newSyntaxError("a rule needs rhs")
	synErrNoLHS           = newSyntaxError("a rule needs lhs")
	synErrInvalidRHS      = newSyntaxError("rhs must be a string or a list of strings")
)
