package spec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	mlcompiler "github.com/nihei9/maleeni/compiler"
	mldriver "github.com/nihei9/maleeni/driver"
	mlspec "github.com/nihei9/maleeni/spec"
	verr "github.com/nihei9/urchin/error"
)

type tokenKind string

const (
	tokenKindID       = tokenKind("id")
	tokenKindChars    = tokenKind("character literal")
	tokenKindOr       = tokenKind("|")
	tokenKindLParen   = tokenKind("(")
	tokenKindRParen   = tokenKind(")")
	tokenKindLBrace   = tokenKind("{")
	tokenKindRBrace   = tokenKind("}")
	tokenKindSep      = tokenKind("%")
	tokenKindStar     = tokenKind("*")
	tokenKindPlus     = tokenKind("+")
	tokenKindQuestion = tokenKind("?")
	tokenKindEmpty    = tokenKind("ε")
	tokenKindEOF      = tokenKind("eof")
	tokenKindInvalid  = tokenKind("invalid")
)

type Position struct {
	Row int
	Col int
}

func newPosition(row, col int) Position {
	return Position{
		Row: row,
		Col: col,
	}
}

type token struct {
	kind  tokenKind
	text  string
	chars []rune
	pos   Position
}

func newSymbolToken(kind tokenKind, pos Position) *token {
	return &token{
		kind: kind,
		pos:  pos,
	}
}

func newIDToken(text string, pos Position) *token {
	return &token{
		kind: tokenKindID,
		text: text,
		pos:  pos,
	}
}

func newCharsToken(chars []rune, pos Position) *token {
	return &token{
		kind:  tokenKindChars,
		chars: chars,
		pos:   pos,
	}
}

func newEOFToken(pos Position) *token {
	return &token{
		kind: tokenKindEOF,
		pos:  pos,
	}
}

func newInvalidToken(text string, pos Position) *token {
	return &token{
		kind: tokenKindInvalid,
		text: text,
		pos:  pos,
	}
}

// rhsLexSpec is the lexical specification of the RHS notation. Kinds whose names start with `kw_`
// and `sym_` are fixed symbols.
var rhsLexSpec = &mlspec.LexSpec{
	Name: "rhs",
	Entries: []*mlspec.LexEntry{
		{Kind: "white_space", Pattern: `[\u{0009}\u{000A}\u{000D}\u{0020}]+`},
		{Kind: "empty", Pattern: `ε|%empty`},
		{Kind: "identifier", Pattern: `[A-Za-z_][0-9A-Za-z_]*`},
		{Kind: "char_literal", Pattern: `'([^'\\\u{000A}]|\\[^\u{000A}])+'`},
		{Kind: "or", Pattern: mlspec.LexPattern(mlspec.EscapePattern("|"))},
		{Kind: "l_paren", Pattern: mlspec.LexPattern(mlspec.EscapePattern("("))},
		{Kind: "r_paren", Pattern: mlspec.LexPattern(mlspec.EscapePattern(")"))},
		{Kind: "l_brace", Pattern: mlspec.LexPattern(mlspec.EscapePattern("{"))},
		{Kind: "r_brace", Pattern: mlspec.LexPattern(mlspec.EscapePattern("}"))},
		{Kind: "sep", Pattern: mlspec.LexPattern(mlspec.EscapePattern("%"))},
		{Kind: "star", Pattern: mlspec.LexPattern(mlspec.EscapePattern("*"))},
		{Kind: "plus", Pattern: mlspec.LexPattern(mlspec.EscapePattern("+"))},
		{Kind: "question", Pattern: mlspec.LexPattern(mlspec.EscapePattern("?"))},
	},
}

var compiledRHSLexSpec = sync.OnceValues(func() (*mlspec.CompiledLexSpec, error) {
	s, err, cErrs := mlcompiler.Compile(rhsLexSpec, mlcompiler.CompressionLevel(mlcompiler.CompressionLevelMax))
	if err != nil {
		if len(cErrs) > 0 {
			return nil, fmt.Errorf("%v: %v", cErrs[0].Kind, cErrs[0].Cause)
		}
		return nil, err
	}
	return s, nil
})

type lexer struct {
	s   *mlspec.CompiledLexSpec
	d   *mldriver.Lexer
	row int
	col int
}

// newLexer returns a lexer whose positions are relative to (row, col), the position of the notation
// in its enclosing file.
func newLexer(src io.Reader, row, col int) (*lexer, error) {
	s, err := compiledRHSLexSpec()
	if err != nil {
		return nil, err
	}
	d, err := mldriver.NewLexer(mldriver.NewLexSpec(s), src)
	if err != nil {
		return nil, err
	}
	return &lexer{
		s:   s,
		d:   d,
		row: row,
		col: col,
	}, nil
}

func (l *lexer) position(tok *mldriver.Token) Position {
	if tok.Row == 0 {
		return newPosition(l.row, l.col+tok.Col)
	}
	return newPosition(l.row+tok.Row, tok.Col+1)
}

func (l *lexer) next() (*token, error) {
	var tok *mldriver.Token
	var kind string
	for {
		var err error
		tok, err = l.d.Next()
		if err != nil {
			return nil, err
		}
		if tok.Invalid {
			return newInvalidToken(string(tok.Lexeme), l.position(tok)), nil
		}
		if tok.EOF {
			return newEOFToken(l.position(tok)), nil
		}
		kind = string(l.s.KindNames[tok.KindID])
		if kind == "white_space" {
			continue
		}
		break
	}

	pos := l.position(tok)
	switch kind {
	case "empty":
		return newSymbolToken(tokenKindEmpty, pos), nil
	case "identifier":
		return newIDToken(string(tok.Lexeme), pos), nil
	case "char_literal":
		text := string(tok.Lexeme)
		chars, err := unescapeChars(text[1 : len(text)-1])
		if err != nil {
			return nil, &verr.SpecError{
				Cause:  synErrInvalidEscSeq,
				Detail: err.Error(),
				Row:    pos.Row,
				Col:    pos.Col,
			}
		}
		return newCharsToken(chars, pos), nil
	case "or":
		return newSymbolToken(tokenKindOr, pos), nil
	case "l_paren":
		return newSymbolToken(tokenKindLParen, pos), nil
	case "r_paren":
		return newSymbolToken(tokenKindRParen, pos), nil
	case "l_brace":
		return newSymbolToken(tokenKindLBrace, pos), nil
	case "r_brace":
		return newSymbolToken(tokenKindRBrace, pos), nil
	case "sep":
		return newSymbolToken(tokenKindSep, pos), nil
	case "star":
		return newSymbolToken(tokenKindStar, pos), nil
	case "plus":
		return newSymbolToken(tokenKindPlus, pos), nil
	case "question":
		return newSymbolToken(tokenKindQuestion, pos), nil
	default:
		return newInvalidToken(string(tok.Lexeme), pos), nil
	}
}

// unescapeChars interprets `\n`, `\r`, `\t`, `\\`, `\'`, and `\xHH`.
func unescapeChars(s string) ([]rune, error) {
	var chars []rune
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '\\' {
			chars = append(chars, rs[i])
			continue
		}
		i++
		if i >= len(rs) {
			return nil, fmt.Errorf("incomplete escape sequence")
		}
		switch rs[i] {
		case 'n':
			chars = append(chars, '\n')
		case 'r':
			chars = append(chars, '\r')
		case 't':
			chars = append(chars, '\t')
		case '\\', '\'':
			chars = append(chars, rs[i])
		case 'x':
			if i+2 >= len(rs) {
				return nil, fmt.Errorf("\\x needs two hexadecimal digits")
			}
			v, err := strconv.ParseUint(string(rs[i+1:i+3]), 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid escape sequence: \\x%v", string(rs[i+1:i+3]))
			}
			chars = append(chars, rune(v))
			i += 2
		default:
			return nil, fmt.Errorf("unknown escape sequence: \\%v", strings.TrimSpace(string(rs[i])))
		}
	}
	return chars, nil
}
