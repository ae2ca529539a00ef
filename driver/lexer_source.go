package driver

import (
	"bytes"
	"fmt"
	"io"

	mldriver "github.com/nihei9/maleeni/driver"
	spec "github.com/nihei9/urchin/spec/grammar"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// NewSource returns the terminal source the scanner of a compiled grammar calls for.
func NewSource(g *spec.CompiledGrammar, src io.Reader, opts ...SourceOption) (TerminalSource, error) {
	switch g.Scanner {
	case "", "rune":
		return NewRuneSource(NewGrammar(g), src, opts...)
	case "byte":
		return NewByteSource(NewGrammar(g), src, opts...)
	case "lexer":
		return NewLexerSource(g, src, opts...)
	}
	return nil, fmt.Errorf("unknown scanner: %v", g.Scanner)
}

type lexerSource struct {
	lex   *mldriver.Lexer
	terms spec.TerminalTable
	skip  []int
	pos   position
	last  *Terminal

	// readErr is the failure of reading the input. It is reported in place of EOF.
	readErr error
}

// NewLexerSource tokenizes the input with the lexer compiled into a lexer grammar. Tokens of skipped
// kinds never reach the parser. When reading src fails, the terminals read so far are followed by an
// exception terminal.
func NewLexerSource(g *spec.CompiledGrammar, src io.Reader, opts ...SourceOption) (TerminalSource, error) {
	if g.Lexical == nil || g.Lexical.Maleeni == nil {
		return nil, fmt.Errorf("grammar %v has no lexical specification; its scanner is %v", g.Name, g.Scanner)
	}
	tabs, err := decodeSourceTables(NewGrammar(g), opts)
	if err != nil {
		return nil, err
	}
	b, readErr := io.ReadAll(src)
	lex, err := mldriver.NewLexer(mldriver.NewLexSpec(g.Lexical.Maleeni.Spec), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return &lexerSource{
		lex:     lex,
		terms:   tabs.Terminals,
		skip:    g.Lexical.Maleeni.Skip,
		readErr: readErr,
	}, nil
}

func (s *lexerSource) Next() *Terminal {
	if s.last != nil {
		return s.last
	}
	for {
		tok, err := s.lex.Next()
		if err != nil {
			s.last = s.pos.exception(err)
			return s.last
		}
		if tok.EOF {
			if s.readErr != nil {
				s.last = s.pos.exception(s.readErr)
				return s.last
			}
			s.last = &Terminal{
				ID:     spec.TerminalEOF,
				Row:    tok.Row,
				Col:    tok.Col,
				Offset: s.pos.offset,
			}
			return s.last
		}

		offset := s.pos.offset
		s.pos = position{
			row:    tok.Row,
			col:    tok.Col,
			offset: offset,
		}
		s.pos.skip(tok.Lexeme)
		if tok.Invalid {
			return &Terminal{
				ID:     spec.TerminalScanError,
				Lexeme: tok.Lexeme,
				Row:    tok.Row,
				Col:    tok.Col,
				Offset: offset,
				Err:    fmt.Errorf("%w: %q", ErrUnknownCode, tok.Lexeme),
			}
		}
		kind := int(tok.KindID)
		if kind < len(s.skip) && s.skip[kind] == 1 {
			continue
		}
		pos := position{
			row:    tok.Row,
			col:    tok.Col,
			offset: offset,
		}
		return pos.terminal(s.terms, kind, tok.Lexeme)
	}
}

type lexmachineSource struct {
	gram    Grammar
	scanner *lexmachine.Scanner
	last    *Terminal
}

// NewLexmachineSource adapts a lexmachine scanner. The Type of each token must be a terminal
// number of gram; TerminalIDs helps to build the lexmachine actions.
func NewLexmachineSource(gram Grammar, scanner *lexmachine.Scanner) TerminalSource {
	return &lexmachineSource{
		gram:    gram,
		scanner: scanner,
	}
}

func (s *lexmachineSource) Next() *Terminal {
	if s.last != nil {
		return s.last
	}
	tok, err, eos := s.scanner.Next()
	if eos {
		s.last = &Terminal{
			ID:     spec.TerminalEOF,
			Offset: s.scanner.TC,
		}
		return s.last
	}
	if err != nil {
		ui, ok := err.(*machines.UnconsumedInput)
		if !ok {
			s.last = &Terminal{
				ID:     spec.TerminalException,
				Offset: s.scanner.TC,
				Err:    err,
			}
			return s.last
		}
		from, to := ui.StartTC, ui.FailTC
		if to <= from {
			to = from + 1
		}
		if to > len(ui.Text) {
			to = len(ui.Text)
		}
		s.scanner.TC = to
		return &Terminal{
			ID:     spec.TerminalScanError,
			Lexeme: ui.Text[from:to],
			Row:    zeroBased(ui.StartLine),
			Col:    zeroBased(ui.StartColumn),
			Offset: from,
			Err:    fmt.Errorf("%w: %q", ErrUnknownCode, ui.Text[from:to]),
		}
	}

	token := tok.(*lexmachine.Token)
	t := &Terminal{
		ID:     token.Type,
		Code:   token.Type,
		Lexeme: token.Lexeme,
		Row:    zeroBased(token.StartLine),
		Col:    zeroBased(token.StartColumn),
		Offset: token.TC,
	}
	if token.Type < spec.TerminalMin || s.gram.Terminal(token.Type) == "" {
		t.ID = spec.TerminalScanError
		t.Err = fmt.Errorf("%w: token type %v", ErrUnknownCode, token.Type)
	}
	return t
}

// lexmachine counts lines and columns from 1.
func zeroBased(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

// TerminalIDs maps the names of the user-defined terminals of gram to their numbers.
func TerminalIDs(gram Grammar) map[string]int {
	ids := map[string]int{}
	for id := spec.TerminalMin; ; id++ {
		name := gram.Terminal(id)
		if name == "" {
			break
		}
		ids[name] = id
	}
	return ids
}

// LexmachineToken is a lexmachine action emitting a token of a terminal.
func LexmachineToken(terminal int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(terminal, m.Bytes, m), nil
	}
}

// LexmachineSkip is a lexmachine action dropping the match.
func LexmachineSkip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}
