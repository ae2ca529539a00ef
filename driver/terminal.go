package driver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/nihei9/urchin/codec"
	spec "github.com/nihei9/urchin/spec/grammar"
)

// Terminal is one input symbol handed to a parser.
type Terminal struct {
	// ID is a terminal number. spec.TerminalEOF ends the input, spec.TerminalScanError marks input
	// no terminal matches, and spec.TerminalException reports a failure of the source.
	ID int

	// Code is the raw code the terminal was mapped from: a rune, a byte, or a lexical kind ID.
	Code int

	Lexeme []byte

	// Row and Col are zero-based.
	Row    int
	Col    int
	Offset int

	// Err is set on scan-error and exception terminals.
	Err error
}

func (t *Terminal) EOF() bool {
	return t.ID == spec.TerminalEOF
}

// TerminalSource supplies terminals one by one. After the end of the input, Next keeps returning
// an EOF terminal.
type TerminalSource interface {
	Next() *Terminal
}

type sourceConfig struct {
	cache *codec.Cache
}

type SourceOption func(config *sourceConfig)

// SourceCache makes a source decode the tables through c. By default the process-wide cache is used.
// A source and a parser sharing c decode the tables once.
func SourceCache(c *codec.Cache) SourceOption {
	return func(config *sourceConfig) {
		config.cache = c
	}
}

func decodeSourceTables(gram Grammar, opts []SourceOption) (*spec.ParsingTables, error) {
	config := &sourceConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return DecodeTables(gram, config.cache)
}

var (
	ErrInvalidEncoding = errors.New("invalid UTF-8 encoding")
	ErrUnknownCode     = errors.New("no terminal matches the input")
)

type position struct {
	row    int
	col    int
	offset int
}

func (p *position) advance(size int, newline bool) {
	p.offset += size
	if newline {
		p.row++
		p.col = 0
		return
	}
	p.col++
}

// skip moves the position past a lexeme.
func (p *position) skip(lexeme []byte) {
	for len(lexeme) > 0 {
		c, size := utf8.DecodeRune(lexeme)
		p.advance(size, c == '\n')
		lexeme = lexeme[size:]
	}
}

func (p *position) eof() *Terminal {
	return &Terminal{
		ID:     spec.TerminalEOF,
		Row:    p.row,
		Col:    p.col,
		Offset: p.offset,
	}
}

func (p *position) exception(err error) *Terminal {
	return &Terminal{
		ID:     spec.TerminalException,
		Row:    p.row,
		Col:    p.col,
		Offset: p.offset,
		Err:    err,
	}
}

func (p *position) terminal(terms spec.TerminalTable, code int, lexeme []byte) *Terminal {
	t := &Terminal{
		Code:   code,
		Lexeme: lexeme,
		Row:    p.row,
		Col:    p.col,
		Offset: p.offset,
	}
	id, ok := terms.Lookup(code)
	if !ok {
		t.ID = spec.TerminalScanError
		t.Err = fmt.Errorf("%w: %q", ErrUnknownCode, lexeme)
		return t
	}
	t.ID = id
	return t
}

type runeSource struct {
	r     *bufio.Reader
	terms spec.TerminalTable
	pos   position
	last  *Terminal
}

// NewRuneSource reads UTF-8 text and maps each code point to a terminal. Invalid encodings and code
// points no terminal covers become scan-error terminals.
func NewRuneSource(gram Grammar, src io.Reader, opts ...SourceOption) (TerminalSource, error) {
	tabs, err := decodeSourceTables(gram, opts)
	if err != nil {
		return nil, err
	}
	return &runeSource{
		r:     bufio.NewReader(src),
		terms: tabs.Terminals,
	}, nil
}

func (s *runeSource) Next() *Terminal {
	if s.last != nil {
		return s.last
	}
	buf, err := s.r.Peek(utf8.UTFMax)
	if len(buf) == 0 {
		if err == nil || err == io.EOF {
			s.last = s.pos.eof()
		} else {
			s.last = s.pos.exception(err)
		}
		return s.last
	}

	c, size := utf8.DecodeRune(buf)
	lexeme := make([]byte, size)
	copy(lexeme, buf[:size])
	var t *Terminal
	if c == utf8.RuneError && size <= 1 {
		t = &Terminal{
			ID:     spec.TerminalScanError,
			Code:   int(buf[0]),
			Lexeme: lexeme,
			Row:    s.pos.row,
			Col:    s.pos.col,
			Offset: s.pos.offset,
			Err:    fmt.Errorf("%w: 0x%02x", ErrInvalidEncoding, buf[0]),
		}
	} else {
		t = s.pos.terminal(s.terms, int(c), lexeme)
	}
	if _, err := s.r.Discard(size); err != nil {
		s.last = s.pos.exception(err)
		return s.last
	}
	s.pos.advance(size, c == '\n')
	return t
}

type byteSource struct {
	r     *bufio.Reader
	terms spec.TerminalTable
	pos   position
	last  *Terminal
}

// NewByteSource maps each byte of the input to a terminal.
func NewByteSource(gram Grammar, src io.Reader, opts ...SourceOption) (TerminalSource, error) {
	tabs, err := decodeSourceTables(gram, opts)
	if err != nil {
		return nil, err
	}
	return &byteSource{
		r:     bufio.NewReader(src),
		terms: tabs.Terminals,
	}, nil
}

func (s *byteSource) Next() *Terminal {
	if s.last != nil {
		return s.last
	}
	b, err := s.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			s.last = s.pos.eof()
		} else {
			s.last = s.pos.exception(err)
		}
		return s.last
	}
	t := s.pos.terminal(s.terms, int(b), []byte{b})
	s.pos.advance(1, b == '\n')
	return t
}

// TerminalSlice replays a fixed sequence of terminals followed by EOF.
type TerminalSlice struct {
	terms []*Terminal
	next  int
}

func NewTerminalSlice(terms ...*Terminal) *TerminalSlice {
	return &TerminalSlice{
		terms: terms,
	}
}

func (s *TerminalSlice) Next() *Terminal {
	if s.next < len(s.terms) {
		t := s.terms[s.next]
		s.next++
		return t
	}
	return &Terminal{
		ID:     spec.TerminalEOF,
		Offset: s.next,
	}
}
